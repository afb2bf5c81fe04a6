package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/guilherme-santos/calsync/internal/api"
	"github.com/guilherme-santos/calsync/internal/metrics"
	"github.com/guilherme-santos/calsync/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var ServeCommand = _serveCommand{
	Name:        "serve",
	Description: "Serve the HTTP trigger, health and metrics endpoints",
}

type _serveCommand struct {
	Name        string
	Description string
}

func (s _serveCommand) Run(ctx context.Context, app *app, args []string) error {
	var (
		listen   string
		schedule bool
	)

	fs := newFlagSet(s.Name)
	fs.StringVar(&listen, "listen", app.cfg.Listen, "address to listen on")
	fs.BoolVar(&schedule, "schedule", false, "also run the periodic sync")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if schedule {
		sched := newScheduler(app)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() { <-sched.Stop().Done() }()
	}

	srv := &http.Server{
		Addr: listen,
		Handler: api.NewRouter(api.Deps{
			Runner:   app.runner,
			DB:       app.storage,
			Metrics:  metrics.Handler(app.registry),
			Location: app.cfg.Location(),
			Logger:   app.logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Listening", slog.String("addr", listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	fmt.Fprintln(flag.CommandLine.Output(), "Server stopped")
	return nil
}

func newScheduler(app *app) *scheduler.Scheduler {
	return scheduler.New(app.storage, app.runner, scheduler.Config{
		Spec:          app.cfg.Sync.Cron,
		MaxConcurrent: app.cfg.Sync.MaxConcurrent,
		Location:      app.cfg.Location(),
		Logger:        app.logger,
	})
}
