package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/worldchanger/management-systems/internal/board"
)

func (a *app) boardCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the interactive terminal board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, repo, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			// Log lines would tear the alt screen, so the board runs quiet.
			m := board.NewModel(ctx, svc, board.Options{Actor: actor})
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "user", "name recorded as changed_by in task history")
	return cmd
}
