package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/worldchanger/management-systems/internal/api"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the kanban REST API",
		Long: `Serve the kanban REST API under /api/v1/kanban until interrupted.

Examples:
  kanban serve --addr :8080
  KANBAN_API_TOKEN=secret kanban serve --database-url postgres://localhost/kanban`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	a.bind("api.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, repo, err := a.openService(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	if a.cfg.API.Token == "" {
		a.logger.Warn("api.token is empty, the API is unauthenticated")
	}
	server := api.NewServer(svc, api.Options{
		Token:        a.cfg.API.Token,
		DefaultActor: a.cfg.API.DefaultActor,
		Logger:       a.logger,
	})
	return server.Run(ctx, a.cfg.API.Addr, a.cfg.API.ShutdownTimeout)
}
