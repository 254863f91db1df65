package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hostbridge version.",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok || info.Main.Version == "" {
			fmt.Println("hostbridge (unknown version)")
			return
		}

		fmt.Printf("hostbridge %s\n", info.Main.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
