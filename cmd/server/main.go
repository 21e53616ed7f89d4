package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telemetrix/esp32-backend/internal/app"
	"github.com/telemetrix/esp32-backend/internal/config"
	"github.com/telemetrix/esp32-backend/internal/tools/common"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "esp32-backend",
		Short: "Sensor ingestion backend with session-backed authentication",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before reading config")
	cmd.AddCommand(newServeCommand(), newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and session reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.InitializeApp(ctx)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and seed default alert thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			db, err := app.ProvideDatabase(cfg)
			if err != nil {
				return err
			}
			if err := app.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}
