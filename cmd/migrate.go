package main

import (
	"strconv"

	"CrmAPI/internal/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pg, err := db.InitPostgres(cmd.Context(), cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		return db.MigrateUp(pg.DB)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (all when steps is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return cmd.Usage()
			}
			steps = n
		}
		pg, err := db.InitPostgres(cmd.Context(), cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		return db.MigrateDown(pg.DB, steps)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
