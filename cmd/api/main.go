package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ragdesk",
	Short: "Chat with your documents",
	Long: `ragdesk indexes uploaded documents into named collections, answers
questions grounded in them and summarizes them in the background.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		c, err := config.LoadConfig()
		if err != nil {
			return err
		}
		logger.Init(c.LogLevel, c.LogFormat)
		cfg = c
		return nil
	},
	RunE: runServe,
}

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
