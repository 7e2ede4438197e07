package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/infra/mysql"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the order, provider event and catalog tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			if err := mysql.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(mysql.Models()))
			return nil
		},
	}
}
