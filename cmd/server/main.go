package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/homequest/internal/auth"
	"github.com/mmynk/homequest/internal/config"
	"github.com/mmynk/homequest/internal/handlers"
	"github.com/mmynk/homequest/internal/metrics"
	"github.com/mmynk/homequest/internal/service"
	"github.com/mmynk/homequest/internal/storage/gormstore"
	"github.com/mmynk/homequest/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogFormat, cfg.LogLevel)

	store, err := gormstore.Open(gormstore.Config{
		Driver:    cfg.DBDriver,
		DSN:       cfg.DSN(),
		SlowQuery: 200 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.DBDriver)

	revoker, closeRevoker, err := newRevoker(cfg)
	if err != nil {
		return err
	}
	defer closeRevoker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL, revoker)
	authenticator := auth.NewPasswordAuthenticator(store)

	h := handlers.New(
		service.NewBuyerService(store, service.BuyerOptions{
			Location:            cfg.Location,
			RecordCreateHistory: cfg.RecordCreateHistory,
		}),
		service.NewTransferService(store, service.TransferOptions{
			Location: cfg.Location,
			Metrics:  m,
		}),
		service.NewAuthService(authenticator, jwtManager, store, slog.Default()),
		handlers.Options{
			MaxUploadBytes: cfg.MaxUploadBytes,
			Production:     cfg.Production(),
		},
	)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// h2c serves HTTP/2 without TLS behind a terminating proxy.
		Handler:           h2c.NewHandler(h.Routes(jwtManager, m), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newRevoker uses Redis when REDIS_ADDR is set and an in-process list
// otherwise. The in-process list is lost on restart.
func newRevoker(cfg *config.Config) (auth.Revoker, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR not set, revoked tokens are kept in memory")
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	slog.Info("Token revocation backed by redis", "address", cfg.RedisAddr)
	return auth.NewRedisRevoker(client), func() { client.Close() }, nil
}
