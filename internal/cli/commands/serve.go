package commands

import (
	"os/signal"
	"syscall"

	"github.com/fraiseql/specql-sub006/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the allocation coordinator",
		Long: `Run the allocation coordinator: an HTTP service that owns the registry
store and serializes allocations for parallel generator jobs.

Endpoints live under /v1; Prometheus metrics are served at /metrics.`,
		Example: `  specql serve
  specql serve --addr :8790 --store postgres --dsn "$SPECQL_DATABASE_URL"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = cc.Cfg.GetServerConfig().Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cc.Renderer.Println("specql coordinator listening on http://" + addr)
			srv := server.New(server.Config{
				Addr:   addr,
				Store:  cc.Store,
				Logger: cc.Logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	return cmd
}
