package main

import (
	"context"
	"fmt"

	"github.com/cimillas/checkin-pay/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema for the postgres store driver",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
	defer cancel()

	pool, err := openPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	ran, err := migrations.Apply(ctx, pool)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(ran) == 0 {
		fmt.Fprintln(out, "schema up to date")
		return nil
	}
	for _, name := range ran {
		fmt.Fprintf(out, "applied %s\n", name)
	}
	return nil
}
