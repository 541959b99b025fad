package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"finbench/evaluation/reference"
	"finbench/internal/domain/benchmark"
	"finbench/internal/logging"
)

func newCacheCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the reference answer cache",
	}

	openStore := func() (*reference.Store, error) {
		cfg, _, err := opts.loadConfig()
		if err != nil {
			return nil, err
		}
		return reference.Open(cfg.Cache.Path, reference.WithLogger(logging.Nop()))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache contents and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(store.Stats())
			if err != nil {
				return fmt.Errorf("encode stats: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	var (
		year    int
		company string
		task    string
		all     bool
	)
	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Remove cached reference answers matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := reference.Filter{Year: year, CompanyID: company}
			if task != "" {
				id, err := benchmark.ParseTaskID(task)
				if err != nil {
					return err
				}
				filter.Task = id
			}
			if filter == (reference.Filter{}) && !all {
				return fmt.Errorf("refusing to clear the whole cache without --all")
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			removed, err := store.Invalidate(filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed %d reference answers\n", green("✓"), removed)
			return nil
		},
	}
	invalidate.Flags().IntVar(&year, "year", 0, "Only entries for this fiscal year")
	invalidate.Flags().StringVar(&company, "company", "", "Only entries for this company CIK")
	invalidate.Flags().StringVar(&task, "task", "", "Only entries for this task (risk_classification, business_summary, consistency_check)")
	invalidate.Flags().BoolVar(&all, "all", false, "Allow removing every entry")
	cmd.AddCommand(invalidate)

	return cmd
}
