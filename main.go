package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/viajai/server/internal/assistant"
	"github.com/viajai/server/internal/auth"
	"github.com/viajai/server/internal/billing"
	"github.com/viajai/server/internal/config"
	"github.com/viajai/server/internal/conversation"
	"github.com/viajai/server/internal/core"
	"github.com/viajai/server/internal/httpapi"
	"github.com/viajai/server/internal/quota"
	"github.com/viajai/server/internal/session"
	"github.com/viajai/server/internal/store"
	logx "github.com/viajai/server/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg config.AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	users, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open user store")
	}
	defer users.Close()

	gen, err := assistant.NewGemini(ctx, cfg.Gemini)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise assistant")
	}

	// ====================================================
	// Wire the submission flow
	history := conversation.NewHistory(conversation.NewRepo(rdb, cfg.Conversation.TTL), cfg.Conversation.MaxTurns)
	anon := quota.NewAnonStore(rdb, cfg.Trial.FreeUses, cfg.Trial.TTL)
	ctrl := session.NewController(gen, history, users, anon, cfg.Dispatch.Timeout)
	sessions := auth.NewSessions(rdb, cfg.Session.TTL)
	webhook := billing.NewWebhook(users, cfg.KiwifyWebhookSecret)

	api := httpapi.New(ctrl, sessions, users, webhook, env, cfg.RateLimit)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.HTTPAddr).Str("env", env.String()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logx.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}
