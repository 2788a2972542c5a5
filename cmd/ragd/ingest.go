package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	ingestScope string
	ingestFresh bool
	ingestName  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Index documents into a scope",
	Long: `Index one or more documents (txt, md, pdf, docx) into a scope.

Pass "-" to read raw text from stdin.

Examples:
  # Index two files into the default scope
  ragd ingest notes.md report.pdf

  # Replace everything in a scope with one document
  ragd ingest --scope project_alpha --fresh spec.docx

  # Index stdin under a name
  cat notes.txt | ragd ingest --name notes -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestScope, "scope", "", "scope to index into (default: the default scope)")
	ingestCmd.Flags().BoolVar(&ingestFresh, "fresh", false, "empty the scope before indexing the first document")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "document name for stdin input")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	// Only the first document honors --fresh; wiping per file would leave
	// just the last one in the scope.
	fresh := ingestFresh
	for _, arg := range args {
		if arg == "-" {
			text, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			result, err := a.ingestor.IngestText(cmd.Context(), ingestName, string(text), ingestScope, fresh)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %s: %d chunks (scope %q)\n", result.Source, result.ChunkCount, result.Scope)
		} else {
			result, err := a.ingestor.IngestFile(cmd.Context(), arg, ingestScope, fresh)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", arg, err)
			}
			fmt.Printf("indexed %s: %d chunks (scope %q)\n", result.Source, result.ChunkCount, result.Scope)
		}
		fresh = false
	}

	return nil
}
