// Package main implements the ragd CLI: a local RAG service with document
// ingestion, scoped retrieval and cited answer generation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location.
	configPath string

	// version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Retrieval-augmented question answering over your own documents",
	Long: `ragd indexes text, markdown, PDF and DOCX documents into a scoped
vector store and answers questions against them with inline citations.

Documents live in scopes. Each scope is an isolated slice of the
collection; queries only ever see chunks from their own scope.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/ragd/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("ragd %s (commit %s, built %s)\n", version, gitCommit, buildDate))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(resetCmd)
}
