package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "zapmenu",
	Short:        "ZapMenu merchant billing service",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, reconcileCmd, grantCmd, statusCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
