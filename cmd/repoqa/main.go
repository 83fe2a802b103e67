// Package main is the entry point of the repoqa pipeline. One binary runs
// each process: the HTTP API, the acquisition workers and the embedding worker.
package main

import (
	"fmt"
	"os"

	"github.com/repoqa/repoqa-backend/internal/builder"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:           "repoqa",
		Short:         "Repository ingestion and question answering",
		Long:          `repoqa mirrors GitHub repositories into a vector store and answers questions about them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&environment, "env", "local", "environment name, selects the .env.<env> file")

	cmd.AddCommand(
		processCmd("serve", "Start the HTTP API server", &environment, builder.Build),
		processCmd("acquire", "Run the acquisition worker pool on the Files Queue", &environment, builder.BuildAcquisitionWorker),
		processCmd("embed", "Run the embedding worker on the Embeddings Queue", &environment, builder.BuildEmbeddingWorker),
		versionCmd(),
	)

	return cmd
}

func processCmd(use, short string, environment *string, build func(string) (*builder.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(*environment)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}

			if err := app.Run(); err != nil {
				return fmt.Errorf("application error: %w", err)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("repoqa version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
		},
	}
}
