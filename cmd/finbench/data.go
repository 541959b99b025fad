package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finbench/internal/corpus"
	"finbench/internal/logging"
)

func newDataCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Filing corpus utilities",
	}

	var years []int
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Report document counts and section coverage per year",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if len(years) == 0 {
				years = cfg.Corpus.Years
			}
			docs, err := corpus.NewFileCorpus(cfg.Corpus.DataPath,
				corpus.WithDocCacheSize(cfg.Corpus.DocCacheSize),
				corpus.WithMinSectionChars(cfg.Corpus.MinSectionChars),
				corpus.WithLogger(logging.Nop()),
			)
			if err != nil {
				return err
			}
			report, err := docs.Validate(cmd.Context(), years)
			if err != nil {
				return err
			}
			printDataReport(cmd.OutOrStdout(), report)
			if !report.OK() {
				return fmt.Errorf("corpus validation failed: %d errors", len(report.Errors))
			}
			return nil
		},
	}
	validate.Flags().IntSliceVar(&years, "years", nil, "Years to check (default corpus.years)")
	cmd.AddCommand(validate)
	return cmd
}

func printDataReport(w io.Writer, report corpus.Report) {
	fmt.Fprintf(w, "%s %s\n", bold("Corpus:"), report.Root)
	for _, yr := range report.Years {
		mark := green("✓")
		if yr.Documents == 0 {
			mark = red("✗")
		} else if len(yr.Unreadable) > 0 || len(yr.MissingSections) > 0 {
			mark = yellow("!")
		}
		fmt.Fprintf(w, "  %s %d: %d filings\n", mark, yr.Year, yr.Documents)
		for _, section := range corpus.RequiredSections {
			if n := yr.MissingSections[section]; n > 0 {
				fmt.Fprintf(w, "      %s\n", gray(fmt.Sprintf("%d without %s (%s)", n, section, section.Title())))
			}
		}
		if len(yr.Unreadable) > 0 {
			fmt.Fprintf(w, "      %s\n", gray(fmt.Sprintf("%d unreadable", len(yr.Unreadable))))
		}
	}
	fmt.Fprintf(w, "%s %d filings\n", bold("Total:"), report.TotalDocuments)
	for _, msg := range report.Errors {
		fmt.Fprintf(w, "%s %s\n", red("error:"), msg)
	}
}
