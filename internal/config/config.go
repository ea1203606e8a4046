// Package config defines the environment-driven application configuration.
package config

import (
	"time"

	"github.com/viajai/server/internal/assistant"
	pkgredis "github.com/viajai/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment  string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"data/app.db"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	Gemini assistant.GeminiConfig

	// Billing
	KiwifyWebhookSecret string `envconfig:"KIWIFY_WEBHOOK_SECRET" required:"true"`

	Session      SessionConfig
	Conversation ConversationConfig
	Trial        TrialConfig
	Dispatch     DispatchConfig

	// RateLimit is requests per IP per minute on /api; zero disables it.
	RateLimit int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
}

type SessionConfig struct {
	TTL time.Duration `envconfig:"SESSION_TTL" default:"720h"`
}

type ConversationConfig struct {
	TTL      time.Duration `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns int           `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
}

type TrialConfig struct {
	// FreeUses is the anonymous trial budget per client IP.
	FreeUses int `envconfig:"TRIAL_FREE_USES" default:"3"`
	// TTL bounds how long an exhausted counter lingers.
	TTL time.Duration `envconfig:"TRIAL_TTL" default:"24h"`
}

type DispatchConfig struct {
	// Timeout bounds one assistant call; expiry surfaces as a dispatch error.
	Timeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"60s"`
}
