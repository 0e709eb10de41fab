package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coachpo/beacon-spear-edge/internal/config"
	"github.com/coachpo/beacon-spear-edge/internal/logger"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "edge",
		Short: "Edge ingestion relay for the beacon alerting backend",
		Long:  "Edge node that forwards ingest requests upstream (full mode) or terminates them locally against a routing config (lite mode)",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, env vars suffice)")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the edge node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: failed to load config: %v\n", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: failed to init logger: %v\n", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Infow("Starting edge node", "mode", cfg.Mode)

			app := NewApp(cfg, log)
			if err := app.Initialize(); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil {
				log.Errorw("Application error", "error", err)
				return err
			}
			return nil
		},
	}
}
