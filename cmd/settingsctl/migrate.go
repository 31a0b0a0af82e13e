package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the identifier cache database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			client, err := openDatabase(ctx, rt.cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			rt.logger.Info("migrations applied", "driver", rt.cfg.DatabaseDriver)
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied successfully")
			return nil
		})
	},
}
