package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coursepulse/coursepulse/client/internal/config"
	"github.com/coursepulse/coursepulse/client/realtime"
	"github.com/coursepulse/coursepulse/pkg/channel"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	path := flag.String("path", "", "subscription path override, e.g. /notifications/42")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *path != "" {
		cfg.Client.Path = *path
	}
	slog.Info("pulse-tail starting",
		"base_url", cfg.Client.BaseURL,
		"path", cfg.Client.Path,
		"enabled", cfg.Client.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hdr := http.Header{}
	if cfg.Client.Auth.Mode == "apikey" && cfg.Client.Auth.Key() != "" {
		hdr.Set(cfg.Client.Auth.EffectiveHeader(), cfg.Client.Auth.Key())
	}

	client := realtime.New(realtime.Config{
		BaseURL:          cfg.Client.BaseURL,
		Path:             cfg.Client.Path,
		Enabled:          cfg.Client.Enabled,
		Header:           hdr,
		DisableReconnect: cfg.Client.DisableReconnect,
		MaxAttempts:      cfg.Client.MaxAttempts,
		BackoffInitial:   cfg.Client.BackoffInitial,
		BackoffMax:       cfg.Client.BackoffMax,
		Handlers: realtime.Handlers{
			OnMessage: func(env channel.Envelope) {
				fmt.Printf("%d %s %s\n", env.Timestamp, env.Type, string(env.Data))
			},
			OnOpen:  func() { slog.Info("stream open") },
			OnClose: func() { slog.Info("stream closed") },
			OnError: func(err error) { slog.Error("stream error", "err", err) },
		},
		Logger: logger,
	})
	defer client.Close()

	client.Connect(ctx)

	<-ctx.Done()
	slog.Info("pulse-tail shutting down")
}
