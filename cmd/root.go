/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flatwithoutbrokerage/flatapi/config"
	"github.com/flatwithoutbrokerage/flatapi/internal/logger"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flatapi",
	Short: "Backend for the FlatWithoutBrokerage listings site",
	Long: `flatapi serves the owner-to-tenant property listings API and ships the
operational commands that go with it: migrations, demo data and dev tokens.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// setup loads configuration and installs the default logger.
func setup() (config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	return cfg, logger.Init(cfg.Env, cfg.LogLevel)
}
