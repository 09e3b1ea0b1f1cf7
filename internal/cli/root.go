// Package cli wires the kanban commands: serve, migrate, export, board and
// config.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/worldchanger/management-systems/internal/config"
	"github.com/worldchanger/management-systems/internal/kanban"
	"github.com/worldchanger/management-systems/internal/logging"
	"github.com/worldchanger/management-systems/internal/storage"
)

type app struct {
	configFile string
	envFile    string

	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	logger *log.Logger
	// flags maps config keys to the flags that may override them.
	flags map[string]*pflag.Flag
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, flags: make(map[string]*pflag.Flag)}

	root := &cobra.Command{
		Use:   "kanban",
		Short: "Kanban board backed by SQLite or Postgres",
		Long: `kanban imports a TODO.md document into a task store and serves the
resulting board over HTTP or in the terminal.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./kanban.yaml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json, logfmt")
	pf.String("database-url", "", "database URL or SQLite file path")
	pf.String("driver", "", "database driver: sqlite or postgres (inferred from the URL when empty)")
	a.bind("log.level", pf.Lookup("log-level"))
	a.bind("log.format", pf.Lookup("log-format"))
	a.bind("database.url", pf.Lookup("database-url"))
	a.bind("database.driver", pf.Lookup("driver"))

	root.AddCommand(
		a.serveCommand(),
		a.migrateCommand(),
		a.exportCommand(),
		a.boardCommand(),
		a.configCommand(),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute(version string) error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (a *app) bind(key string, flag *pflag.Flag) {
	a.flags[key] = flag
}

func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: a.configFile,
		EnvFile:    a.envFile,
		Flags:      a.flags,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg

	opts := logging.DefaultOptions()
	opts.Output = a.errOut
	if opts.Level, err = logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	if opts.Formatter, err = logging.ParseFormatter(cfg.Log.Format); err != nil {
		return err
	}
	a.logger = logging.New(opts)
	return nil
}

// openService opens the configured store and wraps it in the board service.
// The caller closes the returned repository.
func (a *app) openService(ctx context.Context) (*kanban.Service, storage.Repository, error) {
	driver, dsn, err := a.cfg.ResolveDatabase()
	if err != nil {
		return nil, nil, err
	}
	repo, err := storage.Open(ctx, storage.Options{Driver: driver, DSN: dsn})
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("store opened", "driver", driver)
	return kanban.NewService(repo, kanban.WithLogger(a.logger)), repo, nil
}
