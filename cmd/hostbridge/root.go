package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "hostbridge",
	Short: "hostbridge runs demonstration scenarios against a virtual " +
		"board.",
	Long: `hostbridge runs demonstration scenarios against a virtual ` +
		`board backed by the loopback host. It is meant for exploring the ` +
		`monitoring server and the request recorder interactively.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env files are fine; environment variables still apply.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
