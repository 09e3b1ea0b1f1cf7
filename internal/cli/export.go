package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/storage"
	"github.com/worldchanger/management-systems/internal/todo"
	"github.com/worldchanger/management-systems/internal/views"
)

type exportOptions struct {
	section string
	render  bool
	output  string
	title   string
}

func (a *app) exportCommand() *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the board back out as a TODO.md document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExport(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.section, "section", "", "only export one section")
	cmd.Flags().BoolVar(&opts.render, "render", false, "pretty-print the markdown for the terminal")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().StringVar(&opts.title, "title", "TODO", "document heading")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, opts *exportOptions) error {
	filter := storage.TaskListFilter{}
	if opts.section != "" {
		section, err := model.ParseSection(opts.section)
		if err != nil {
			return err
		}
		filter.Section = section
	}

	ctx := cmd.Context()
	svc, repo, err := a.openService(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	tasks, err := svc.List(ctx, filter)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if todo.HasMarkers(t.Content) {
			a.logger.Warn("task content contains marker text and will not parse back unchanged", "task_id", t.ID, "content", t.Content)
		}
	}
	doc := todo.Render(opts.title, tasks)
	if opts.render {
		doc = views.RenderMarkdown(doc) + "\n"
	}

	if opts.output == "" {
		_, err = fmt.Fprint(a.out, doc)
		return err
	}
	if err := os.WriteFile(opts.output, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	a.logger.Info("board exported", "path", opts.output, "tasks", len(tasks))
	return nil
}
