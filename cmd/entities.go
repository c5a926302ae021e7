package main

import (
	"fmt"

	"CrmAPI/entities"
	"CrmAPI/internal/model"

	"github.com/spf13/cobra"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Inspect entity declarations",
}

var entitiesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate every entity declaration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := model.InitRegistry(cfg.EntitiesDir, entities.FS)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range reg.All() {
			fmt.Fprintf(out, "%-22s /api/%-24s %d fields, %d relations\n", e.Name, e.Route, len(e.Fields), len(e.Relations))
		}
		return nil
	},
}

func init() {
	entitiesCmd.AddCommand(entitiesCheckCmd)
}
