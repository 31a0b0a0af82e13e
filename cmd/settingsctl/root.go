package main

import "github.com/spf13/cobra"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "settingsctl",
	Short:         "Inspect and change Matrix account settings.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading SETTINGS_* variables")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "print recorded metrics to stderr after the command")
	rootCmd.AddCommand(discoveryCmd, acceptTermsCmd, changePasswordCmd, identifiersCmd, migrateCmd)
}
