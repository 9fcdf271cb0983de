package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/sqlfence/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host string
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the JSON HTTP API in front of the pipeline.

The grammar is compiled before the listener opens, so an invalid schema
stops the server from starting. Generation and the target database are
optional; their endpoints answer with an error when not configured.`,
		Example: `  sqlfence serve
  sqlfence serve --host 0.0.0.0 --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Address to bind (default from server.host)")
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to listen on (default from server.port)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := needHistory
	if cc.Cfg.Generator.APIKey != "" {
		n |= needGenerator
	} else {
		cc.Logger.Warn("generator not configured; /api/query and /api/sql/generate are unavailable")
	}
	if cc.Cfg.HasTarget() {
		n |= needDatabase
	} else {
		cc.Logger.Warn("no target database configured; /api/query is unavailable")
	}

	svc, cleanup, err := cc.OpenService(ctx, n)
	if err != nil {
		return err
	}
	defer cleanup()

	sc := cc.Cfg.Server
	if cmd.Flags().Changed("host") {
		sc.Host = opts.Host
	}
	if cmd.Flags().Changed("port") {
		sc.Port = opts.Port
	}

	srv, err := server.NewServer(server.Config{
		Service:         svc,
		Host:            sc.Host,
		Port:            sc.Port,
		AllowedOrigins:  sc.AllowedOrigins,
		RequestTimeout:  sc.RequestTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
		Logger:          cc.Logger,
	})
	if err != nil {
		return err
	}

	cc.Renderer.Success(fmt.Sprintf("Serving %s on http://%s", svc.Compiled().Schema().Qualified(), srv.Addr()))
	return srv.Serve(ctx)
}
