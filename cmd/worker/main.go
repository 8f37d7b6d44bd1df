package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/audit"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/config"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg.LogLevel)

	pool, err := audit.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	repo := audit.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	processor := worker.NewProcessor(repo, log)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("audit worker starting", "redis", cfg.RedisAddr)
	if err := server.Run(processor.Handler()); err != nil {
		log.Error("worker stopped", "error", err)
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
