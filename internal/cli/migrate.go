package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/reconcile"
	"github.com/worldchanger/management-systems/internal/todo"
	"github.com/worldchanger/management-systems/internal/views"
)

type migrateOptions struct {
	dryRun   bool
	noBackup bool
	actor    string
}

func (a *app) migrateCommand() *cobra.Command {
	opts := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate <TODO.md>",
		Short: "Import a TODO.md document into the task store",
		Long: `Parse a TODO.md document and insert every task that is not already on the
board. A task already exists when a stored task has the same content in the
same section. The import is one transaction: on any failure nothing is kept.

The source is renamed to <file>.backup afterwards unless --no-backup or
--dry-run is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMigrate(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would be imported without writing")
	cmd.Flags().BoolVar(&opts.noBackup, "no-backup", false, "keep the source file in place")
	cmd.Flags().StringVar(&opts.actor, "actor", "migration", "name recorded as changed_by in task history")
	return cmd
}

func (a *app) runMigrate(cmd *cobra.Command, path string, opts *migrateOptions) error {
	records, err := todo.ParseFile(path)
	if err != nil {
		return err
	}
	counts := todo.SectionCounts(records)
	fmt.Fprintln(a.out, views.RenderSectionDistribution(sectionCounts(counts)))
	if len(records) == 0 {
		fmt.Fprintf(a.out, "no tasks found in %s\n", path)
		return nil
	}

	ctx := cmd.Context()
	_, repo, err := a.openService(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	report, err := reconcile.New(repo,
		reconcile.WithLogger(a.logger),
		reconcile.WithActor(opts.actor),
		reconcile.WithDryRun(opts.dryRun),
	).Reconcile(ctx, records)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", path, err)
	}

	backup := ""
	if !opts.dryRun && !opts.noBackup && a.cfg.Migrate.Backup {
		backup = path + ".backup"
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("back up %s: %w", path, err)
		}
		a.logger.Info("source backed up", "path", backup)
	}

	issues := make([]string, len(report.TimestampIssues))
	for i, issue := range report.TimestampIssues {
		issues[i] = issue.String()
	}
	fmt.Fprintln(a.out, views.RenderMigrationReport(views.MigrationReportData{
		Source:          path,
		DryRun:          report.DryRun,
		Found:           report.Found,
		BySection:       sectionCounts(report.BySection),
		Inserted:        report.Inserted,
		Skipped:         report.Skipped,
		TimestampIssues: issues,
		BackupPath:      backup,
	}))
	return nil
}

// sectionCounts orders counts by board section and drops empty sections.
func sectionCounts(counts map[model.Section]int) []views.SectionCount {
	out := make([]views.SectionCount, 0, len(counts))
	for _, s := range model.Sections {
		if n := counts[s]; n > 0 {
			out = append(out, views.SectionCount{Section: string(s), Count: n})
		}
	}
	return out
}
