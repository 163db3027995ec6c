package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/infobase/internal/client"
	"github.com/alphabot-ai/infobase/internal/config"
	"github.com/alphabot-ai/infobase/internal/forum"
	"github.com/alphabot-ai/infobase/internal/localstate"
	"github.com/alphabot-ai/infobase/internal/logging"
	"github.com/alphabot-ai/infobase/internal/reconcile"
	"github.com/alphabot-ai/infobase/internal/session"
)

// app holds the client-side collaborators shared by the forum commands.
type app struct {
	cfg    config.Client
	logger *slog.Logger
	client *client.Client
	state  *localstate.Store
	forum  *forum.Service
}

func openApp(ctx context.Context, stderr *os.File) (*app, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)

	if dir := filepath.Dir(cfg.StatePath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	state, err := localstate.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	c := client.New(cfg.APIURL,
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		client.WithRateLimit(cfg.RPS, cfg.Burst),
		client.WithLogger(logger),
	)
	sess := session.New(c, state, logger)
	if err := sess.Init(ctx); err != nil {
		_ = state.Close()
		return nil, err
	}

	reporter := reconcile.ReporterFunc(func(_ context.Context, op string, err error) {
		fmt.Fprintf(stderr, "warning: %s failed, local changes were reverted: %v\n", op, err)
	})
	svc := forum.New(c, sess, state, reconcile.Hooks{
		Reporter: reporter,
		Metrics:  reconcile.NewMetrics(prometheus.NewRegistry()),
		Logger:   logger,
	})
	return &app{cfg: cfg, logger: logger, client: c, state: state, forum: svc}, nil
}

func (a *app) Close() error {
	return a.state.Close()
}

// withApp opens the client app around a command and closes it afterwards.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
