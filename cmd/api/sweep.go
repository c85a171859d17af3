package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire every elapsed hold once and release its inventory",
	Long: `sweep runs a single pass of the hold sweeper the server runs in the
background. Use it from cron when the server runs with hold.sweep_interval=0.`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger := log.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	n, err := newService(cfg, store, logger).SweepHolds(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep holds: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "expired %d hold(s)\n", n)
	return nil
}
