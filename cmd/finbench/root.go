package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"finbench/internal/config"
)

// Version is stamped at build time.
var Version = "dev"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY checks whether stdout is a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

type rootOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

// loadConfig resolves the effective configuration for a command.
func (o *rootOptions) loadConfig() (config.Config, config.Metadata, error) {
	cfg, meta, err := config.Load(o.configPath)
	if err != nil {
		return cfg, meta, err
	}
	if o.verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	return cfg, meta, nil
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "finbench",
		Short: "Multi-task 10-K financial analysis benchmark",
		Long: fmt.Sprintf(`%s

Grades an analyst agent on three tasks over one 10-K filing: risk
classification (Item 1A), business summary (Item 1) and risk consistency
between Item 1A and MD&A (Item 7).

%s
  finbench serve                                   # Run the A2A evaluator
  finbench evaluate --agent http://localhost:9019  # Grade an agent once
  finbench cache stats                             # Inspect reference answers
  finbench data validate                           # Check the filing corpus
  finbench config show                             # Print effective config`,
			bold("finbench "+Version),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor || !isTTY() {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./finbench.yaml or ~/.finbench/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newEvaluateCommand(opts))
	rootCmd.AddCommand(newCacheCommand(opts))
	rootCmd.AddCommand(newDataCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "finbench %s\n", Version)
		},
	}
}
