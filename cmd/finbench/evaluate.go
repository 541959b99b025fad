package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"finbench/evaluation/orchestrator"
	"finbench/internal/delivery/eval/bootstrap"
	"finbench/internal/domain/benchmark"
)

type evaluateOptions struct {
	agent     string
	year      int
	companyID string
	seed      int64
	jsonOut   bool
}

func newEvaluateCommand(opts *rootOptions) *cobra.Command {
	eo := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation against an analyst agent and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			var buildOpts []bootstrap.BuildOption
			if cmd.Flags().Changed("seed") {
				buildOpts = append(buildOpts, bootstrap.WithSeed(eo.seed))
			}
			deps, err := bootstrap.Build(cfg, buildOpts...)
			if err != nil {
				return err
			}
			defer deps.Close(context.Background())

			req := orchestrator.Request{
				Participants: map[string]string{deps.Orchestrator.Role(): eo.agent},
				Config:       orchestrator.RequestConfig{Year: eo.year, CompanyID: eo.companyID},
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if cfg.Server.RequestTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.RequestTimeout)
				defer cancel()
			}

			progress := orchestrator.ObserverFunc(func(_ context.Context, event orchestrator.Event) {
				printProgress(cmd.ErrOrStderr(), event)
			})
			report, err := deps.Orchestrator.Run(ctx, req, progress)
			if err != nil {
				return err
			}
			if eo.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&eo.agent, "agent", "", "Analyst agent JSON-RPC endpoint")
	cmd.Flags().IntVar(&eo.year, "year", 2018, "Fiscal year of the filing")
	cmd.Flags().StringVar(&eo.companyID, "company", "", "Company CIK (random when omitted)")
	cmd.Flags().Int64Var(&eo.seed, "seed", 0, "Seed for random filing selection")
	cmd.Flags().BoolVar(&eo.jsonOut, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func printProgress(w io.Writer, event orchestrator.Event) {
	switch {
	case event.Err != nil:
		fmt.Fprintf(w, "%s %s\n", red("✗"), event.Message)
	case event.Task != "":
		fmt.Fprintf(w, "  %s %s\n", gray("·"), event.Message)
	default:
		fmt.Fprintf(w, "%s %s\n", cyan("▸"), event.Message)
	}
}

func scoreColor(score float64) func(a ...any) string {
	switch {
	case score >= 80:
		return green
	case score >= 50:
		return yellow
	default:
		return red
	}
}

func printReport(w io.Writer, report *orchestrator.Report) {
	fmt.Fprintf(w, "\n%s %s\n", bold("Filing:"), report.Document)
	for _, task := range benchmark.AllTasks {
		score := report.Score(task)
		fmt.Fprintf(w, "  %-22s %s %s\n", task, scoreColor(score)(fmt.Sprintf("%5.1f", score)),
			gray(fmt.Sprintf("(weight %.0f%%)", report.Weights.For(task)*100)))
		for _, diag := range report.Breakdowns[task].Diagnostics {
			fmt.Fprintf(w, "    %s\n", gray(diag))
		}
	}
	fmt.Fprintf(w, "  %-22s %s\n\n", bold("overall"), scoreColor(report.OverallScore)(fmt.Sprintf("%5.1f", report.OverallScore)))
	if strings.TrimSpace(report.Feedback) != "" {
		fmt.Fprintln(w, report.Feedback)
	}
}
