package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alone-wolf/rutify/internal/broadcast"
	"github.com/alone-wolf/rutify/internal/config"
	"github.com/alone-wolf/rutify/internal/jobs"
	"github.com/alone-wolf/rutify/internal/observability/logging"
	"github.com/alone-wolf/rutify/internal/observability/metrics"
	impl "github.com/alone-wolf/rutify/internal/service/impl"
	"github.com/alone-wolf/rutify/internal/store"
	"github.com/alone-wolf/rutify/internal/tokencodec"
	httpx "github.com/alone-wolf/rutify/internal/transport/http"
	"github.com/alone-wolf/rutify/internal/transport/ws"
)

const serviceName = "rutify"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister(serviceName)

	logger.Info("starting service")

	// 1) DB
	gdb, err := store.Open(store.Config{URL: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// 2) Services
	codec, err := tokencodec.New([]byte(cfg.JWTSecret))
	if err != nil {
		logger.Error("token codec", "error", err)
		os.Exit(1)
	}
	bus := broadcast.New(cfg.BroadcastCapacity)
	pw := impl.NewPasswordServiceArgon2id(cfg.PasswordTimeCost, cfg.PasswordMemoryKiB)
	as := impl.NewAuthServiceImpl(st, pw, codec, impl.AuthConfig{DefaultTokenTTL: cfg.DefaultTokenTTL})
	ns := impl.NewNotifyServiceImpl(st, bus, impl.NotifyConfig{
		DefaultTitle:  cfg.DefaultTitle,
		DefaultDevice: cfg.DefaultDevice,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go jobs.RunTokenSweep(ctx, as, cfg.SweepInterval)

	// 3) HTTP router
	router := httpx.NewRouter(httpx.Deps{
		Auth:   as,
		Notify: ns,
		WS: ws.NewHandler(as, bus, ws.Config{
			PingInterval:   cfg.WSPingInterval,
			AllowedOrigins: cfg.CORSOrigins,
		}),
		Config: httpx.RouterConfig{
			CORSOrigins:       cfg.CORSOrigins,
			RateLimitPerMin:   cfg.RateLimitPerMin,
			NotifyRequireAuth: cfg.NotifyRequireAuth,
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("rutify listening", "addr", srv.Addr, "db", redactURL(cfg.DatabaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// Websocket sessions are hijacked and ignored by Shutdown; closing the
	// broadcaster ends them.
	bus.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "error", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
