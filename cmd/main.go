package main

import (
	"fmt"
	"os"

	"CrmAPI/internal/config"
	"CrmAPI/internal/logger"

	"github.com/spf13/cobra"
)

var (
	debugFlag bool
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "crmapi",
	Short:         "CRM and agency operations REST API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if debugFlag {
			level = "debug"
		}
		logger.Init(logger.Config{Level: level, Format: cfg.Log.Format})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(entitiesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command_failed", map[string]any{"error": err.Error()})
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
