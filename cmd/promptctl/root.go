package main

import (
	"github.com/spf13/cobra"
)

var (
	userID    string
	userEmail string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "promptctl",
	Short: "Manage the prompt library from the command line",
	Long: `promptctl works on the same local snapshot as the API service.

Without --uid the library runs local-only: changes stay in Redis and are
pushed to Postgres the next time a signed-in process syncs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userID, "uid", "", "Firebase uid to sync as (default: local-only)")
	rootCmd.PersistentFlags().StringVar(&userEmail, "email", "", "email recorded for --uid")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(listCmd, exportCmd, importCmd, syncCmd)
}
