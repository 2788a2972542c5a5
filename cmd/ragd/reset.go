package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <scope>",
	Short: "Delete every chunk in a scope",
	Long: `Delete every chunk in a scope. Other scopes are untouched.

Examples:
  ragd reset project_alpha`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ingestor.Reset(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf("scope %q deleted\n", args[0])
	return nil
}
