package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"questions/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "questionsctl",
		Short: "Operate the questions service",
		Long: `questionsctl runs maintenance and bulk commands against the questions
database using the same configuration as the API server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.PublishAnswersCmd())
	rootCmd.AddCommand(cli.ImportTextCmd())
	rootCmd.AddCommand(cli.DeliverCmd())
	rootCmd.AddCommand(cli.ReconcileCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
