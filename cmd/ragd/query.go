package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/pipeline"
)

var queryScope string

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question against a scope",
	Long: `Ask a question and print the generated answer with its citations.

Examples:
  # Query the default scope
  ragd query "what were the Q3 revenue numbers?"

  # Query a specific scope
  ragd query --scope project_alpha "how is the retry budget configured?"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryScope, "scope", "", "scope to query (default: the default scope)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.retriever.Query(cmd.Context(), args[0], queryScope)
	if err != nil {
		return err
	}

	fmt.Println(formatQueryResult(result))
	return nil
}

// formatQueryResult renders an answer and its citation list for the terminal.
func formatQueryResult(result *pipeline.QueryResult) string {
	var b strings.Builder
	b.WriteString(result.Answer)

	if len(result.Citations) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, c := range result.Citations {
			b.WriteString("  " + c.Marker + " " + c.Source)
			if c.Section != "" {
				b.WriteString(" (" + c.Section + ")")
			}
			b.WriteString("\n")
			if c.Snippet != "" {
				b.WriteString("      " + c.Snippet + "\n")
			}
		}
	}

	fmt.Fprintf(&b, "\n%s, %dms", result.Model, result.LatencyMS)
	return b.String()
}
