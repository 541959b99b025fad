package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"finbench/internal/delivery/eval/bootstrap"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		host    string
		port    int
		cardURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluator over A2A JSON-RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("card-url") {
				cfg.Server.CardURL = cardURL
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return bootstrap.Serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	cmd.Flags().StringVar(&cardURL, "card-url", "", "URL advertised in the agent card")
	return cmd
}
