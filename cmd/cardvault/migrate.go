package main

import (
	"fmt"

	"github.com/jonanatree/cardvault/cardservice"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations to the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DB.Type == cardservice.DBMemory {
				return fmt.Errorf("db.type is %q; nothing to migrate", cfg.DB.Type)
			}
			db, err := cardservice.OpenDB(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.DB.Type)
			return nil
		},
	}
}
