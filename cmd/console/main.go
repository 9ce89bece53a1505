package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"hermandad.org/internal/api"
	"hermandad.org/internal/auth"
	"hermandad.org/internal/config"
	"hermandad.org/internal/console"
	"hermandad.org/internal/obs"
	"hermandad.org/internal/session"
)

var version = "0.3.0"

func main() {
	if err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Fatalf("env files: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, cfg.APIBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, closer, err := cfg.OpenSessionStore(ctx)
	cancel()
	if err != nil {
		log.Fatalf("session store: %v", err)
	}

	client, err := api.New(cfg.APIBaseURL,
		api.WithTokenSource(auth.BearerToken),
		api.WithTimeout(cfg.APITimeout),
	)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	cs := console.New(client, store, console.Options{
		Version:            version,
		LowStock:           cfg.LowStock,
		SecureCookies:      cfg.SecureCookies,
		WorkspaceIdle:      cfg.Session.TTL,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	})
	cs.SetReadiness(readiness(store, closer))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cs.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.APITimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Info("console starting", map[string]any{
		"version":       version,
		"addr":          srv.Addr,
		"api_base":      cfg.APIBaseURL,
		"session_store": cfg.Session.Store,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Info("console shutting down", nil)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if err := closer.Close(); err != nil {
		obs.Warn("close session store", map[string]any{"error": err.Error()})
	}
	obs.Info("console stopped", nil)
}

// readiness pings the session backend when it has a connection to check.
func readiness(store session.Store, closer io.Closer) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if pg, ok := store.(*session.Postgres); ok {
			return pg.DB().PingContext(ctx)
		}
		if rdb, ok := closer.(*redis.Client); ok {
			return rdb.Ping(ctx).Err()
		}
		return nil
	}
}
