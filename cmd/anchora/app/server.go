// Package app wires the anchora server command.
package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/kart-io/anchora/cmd/anchora/app/options"
	"github.com/kart-io/anchora/internal/qa"
	"github.com/kart-io/anchora/pkg/infra/app"
)

// NewApp creates the anchora application.
func NewApp() *app.App {
	opts := options.NewServerOptions()

	return app.NewApp(
		app.WithName("anchora"),
		app.WithShortDescription("Grounded document QA service"),
		app.WithDescription("Anchora answers questions over uploaded documents with inline, verifiable source citations."),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return run(opts)
		}),
	)
}

func run(opts *options.ServerOptions) error {
	if err := opts.Log.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := qa.NewServer(ctx, opts.Config())
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
