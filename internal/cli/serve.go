package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/courseswap/internal/api"
	"github.com/roach88/courseswap/internal/engine"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		Long: `Start the single-writer engine loop and serve it over HTTP.

Callers identify themselves with the X-Account header. Requests are queued
and applied one at a time; on shutdown, queued requests fail with 503.

Example:
  courseswap serve --db ./school.db --listen :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				return runServe(ctx, opts, a, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from api.listen, :8080)")
	return cmd
}

func runServe(parent context.Context, opts *ServeOptions, a *app, cmd *cobra.Command) error {
	addr := opts.Listen
	if addr == "" {
		addr = a.cfg.API.Listen
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := engine.NewRunner(a.engine)
	server := api.New(runner, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		// The listener going away stops the runner too.
		defer runner.Stop()
		return server.ListenAndServe(gctx, addr)
	})

	a.logger.Info("serving", "addr", addr, "db", a.cfg.DB)
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s. Press Ctrl-C to stop.\n", addr)

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	a.logger.Info("server stopped gracefully")
	return nil
}
