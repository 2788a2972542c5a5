package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/tui"
)

var tuiScope string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal client",
	Long: `Open an interactive terminal session for asking questions.

Examples:
  # Query the default scope interactively
  ragd tui

  # Query a specific scope
  ragd tui --scope project_alpha`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiScope, "scope", "", "scope to query (default: the default scope)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	program := tea.NewProgram(tui.New(a.retriever, tuiScope), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}
