package main

import (
	"fmt"
	"os"

	"github.com/cimillas/checkin-pay/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "checkin-pay",
	Short: "Payment confirmation and reservation hold service",
	Long: `checkin-pay confirms provider payments with the booking backend exactly once
per order, whichever way the browser comes back, and keeps the reservation
hold timer that releases inventory when the payment window runs out.

Running without a subcommand starts the HTTP server.`,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

// Execute runs the root command.
func Execute(v string) error {
	rootCmd.Version = v

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
