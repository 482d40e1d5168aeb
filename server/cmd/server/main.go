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
	"time"

	"github.com/coursepulse/coursepulse/server/internal/api"
	"github.com/coursepulse/coursepulse/server/internal/auth"
	"github.com/coursepulse/coursepulse/server/internal/bridge"
	"github.com/coursepulse/coursepulse/server/internal/config"
	"github.com/coursepulse/coursepulse/server/internal/history"
	"github.com/coursepulse/coursepulse/server/internal/hub"
	"github.com/coursepulse/coursepulse/server/internal/notify"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watchConfig := flag.Bool("watch-config", true, "reload notify rules when the config file changes")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("coursepulse-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"history_limit", cfg.Server.History.Limit,
		"history_ttl", cfg.Server.History.TTL,
		"bridge_enabled", cfg.Server.Bridge.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// History store with background TTL eviction of idle streams.
	hist := history.New(cfg.Server.History.Limit, cfg.Server.History.TTL)
	go hist.Run(ctx)

	h := hub.New(hist)
	go h.Run(ctx)

	// Offline-delivery webhooks for publishes that reach no subscribers.
	engine := notify.New(cfg.Server.Notify)
	h.SetNotifier(engine)

	// Optional Redis bridge for multi-instance deployments.
	var rb *bridge.RedisBridge
	if cfg.Server.Bridge.Enabled {
		rb = bridge.NewRedisBridge(cfg.Server.Bridge, h)
		if err := rb.Start(); err != nil {
			slog.Error("failed to start redis bridge", "addr", cfg.Server.Bridge.Addr, "err", err)
			os.Exit(1)
		}
		h.SetBridge(rb)
	}

	// Hot-reload notify rules on config file changes.
	if *watchConfig {
		go func() {
			err := config.Watch(ctx, *configPath, func(next config.NotifyConfig) {
				engine.SetRules(next.Rules)
			})
			if err != nil {
				slog.Warn("config watch unavailable", "err", err)
			}
		}()
	}

	// Combined HTTP server: REST API, metrics, and the WebSocket hub.
	middleware := func(next http.Handler) http.Handler {
		return auth.APIKeyMiddleware(
			cfg.Server.Auth.Mode,
			cfg.Server.Auth.EffectiveHeader(),
			cfg.Server.Auth.Key(),
			next,
		)
	}

	var avail api.Availability
	if rb != nil {
		avail = rb
	}
	apiHandler := api.New(h, hist, avail)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", middleware(apiHandler))
	httpMux.Handle("/metrics", apiHandler) // scrape targets skip auth
	httpMux.Handle("/ws", middleware(h))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("coursepulse-server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	if rb != nil {
		if err := rb.Stop(); err != nil {
			slog.Error("redis bridge stop failed", "err", err)
		}
	}
}
