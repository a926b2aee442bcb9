package main

import (
	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragdesk/internal/app"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.NewModuleLogger("cmd", "serve")

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	log.Info("ragdesk is running", "port", cfg.Port, "profile", cfg.Profile)
	if err := app.NewServer(application).Run(ctx); err != nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
