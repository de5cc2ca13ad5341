package main

import (
	"os"

	"github.com/JonMunkholm/dataporter/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "porter",
	Short: "Run period procedures and export reporting tables",
	Long: `porter executes parameterized stored procedures and exports the
tables they populate to xlsx, csv, or tab-delimited txt files.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cli.Run())
	rootCmd.AddCommand(cli.Export())
	rootCmd.AddCommand(cli.Download())
	rootCmd.AddCommand(cli.Validate())
	rootCmd.AddCommand(cli.Tables())
	rootCmd.AddCommand(cli.Procedures())
}
