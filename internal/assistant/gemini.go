package assistant

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	logx "github.com/viajai/server/pkg/logger"
)

// GeminiConfig holds the model parameters, sourced from environment variables.
type GeminiConfig struct {
	APIKey      string  `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL     string  `envconfig:"GEMINI_BASE_URL"`
	Model       string  `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"GEMINI_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"GEMINI_TEMPERATURE" default:"0.7"`
}

// Gemini generates travel content through the Gemini chat model.
type Gemini struct {
	cm    *gemini.ChatModel
	model string
}

// NewGemini creates the genai client and chat model with the given configuration.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	return &Gemini{cm: cm, model: cfg.Model}, nil
}

// Generate runs one model call and returns the reply content. Token usage is
// logged when the backend reports it.
func (g *Gemini) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	logx.Debug().Str("model", g.model).Int("messages", len(messages)).Msg("model call start")

	out, err := g.cm.Generate(ctx, messages)
	if err != nil {
		logx.Error().Err(err).Str("model", g.model).Msg("model call failed")
		return "", fmt.Errorf("generate: %w", err)
	}
	if out == nil {
		return "", nil
	}

	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		logx.Debug().
			Str("model", g.model).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Msg("model call end")
	}
	return out.Content, nil
}

var _ Generator = (*Gemini)(nil)
