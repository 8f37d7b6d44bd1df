package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/config"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/events"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/gateway"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/httpapi"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/scope"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/secret"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/webform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg.LogLevel)
	log.Info("AU Direct Debit Turnstile gateway is starting up")

	// Load the form MAC secret now so configuration errors appear in the
	// startup log rather than on the first transaction.
	store, err := secret.NewStore(cfg.SecretPath, cfg.MacAlgorithm)
	if err != nil {
		log.Error("configure web form MAC", "error", err)
		os.Exit(1)
	}
	if err := store.Check(); err != nil {
		log.Error("web form MAC self-test failed", "error", err)
		os.Exit(1)
	}
	log.Info("web form MAC secret is OK")

	var producer *events.Producer
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		producer = events.NewProducer(client)
		log.Info("capture event producer started", "redis", cfg.RedisAddr)
	} else {
		log.Warn("REDIS_ADDR not set; capture events will not be published")
	}

	gw := gateway.New(webform.NewAuthenticator(store), producer, log)
	scopes := scope.NewParser([]byte(cfg.AuthSecret))
	srv := httpapi.New(cfg.Address, gw, scopes, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
