package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/IcensRAGHomework/rag1-Kllin0219/config"
	"github.com/rs/zerolog"
)

var ErrNoClient = errors.New("no LLM client available - set AZURE_OPENAI_API_KEY/AZURE_OPENAI_ENDPOINT, ANTHROPIC_API_KEY, or run Ollama")

// Router sends every call to the primary client and retries failed calls on
// the fallback when one is configured.
type Router struct {
	primary  Client
	fallback Client
	logger   zerolog.Logger
}

func NewRouter(primary, fallback Client, logger zerolog.Logger) *Router {
	return &Router{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// NewFromConfig builds the client named by LLM_PROVIDER. With "auto" the
// first usable provider wins in the order azure, claude, ollama, and the next
// usable one becomes the fallback.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Router, error) {
	azure := func() Client {
		if !cfg.HasAzure() {
			return nil
		}
		return NewAzureOpenAIClient(AzureOpenAIConfig{
			Endpoint:    cfg.AzureEndpoint,
			APIKey:      cfg.AzureAPIKey,
			Deployment:  cfg.AzureDeployment,
			APIVersion:  cfg.AzureAPIVersion,
			Model:       cfg.ModelName,
			Temperature: cfg.Temperature,
		})
	}
	claude := func() Client {
		if cfg.AnthropicAPIKey == "" {
			return nil
		}
		return NewClaudeClient(cfg.AnthropicAPIKey, cfg.ClaudeModel, cfg.Temperature)
	}
	ollama := func() Client {
		c := NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.Temperature)
		if !c.IsAvailable(ctx) {
			logger.Debug().Str("url", cfg.OllamaURL).Msg("ollama not reachable")
			return nil
		}
		return c
	}

	var candidates []func() Client
	switch cfg.Provider() {
	case config.ProviderAzure:
		candidates = []func() Client{azure, claude}
	case config.ProviderClaude:
		candidates = []func() Client{claude, azure}
	case config.ProviderOllama:
		candidates = []func() Client{ollama}
	default:
		candidates = []func() Client{azure, claude, ollama}
	}

	var clients []Client
	for _, build := range candidates {
		if c := build(); c != nil {
			clients = append(clients, c)
		}
		if len(clients) == 2 {
			break
		}
	}

	if len(clients) == 0 {
		return nil, ErrNoClient
	}

	router := NewRouter(clients[0], nil, logger)
	if len(clients) > 1 {
		router.fallback = clients[1]
	}

	logger.Info().Str("client", router.Name()).Bool("fallback", router.fallback != nil).Msg("LLM client configured")
	return router, nil
}

func (r *Router) Name() string {
	return r.primary.Name()
}

func (r *Router) Primary() Client {
	return r.primary
}

func (r *Router) Fallback() Client {
	return r.fallback
}

func (r *Router) Chat(ctx context.Context, req Request) (*Response, error) {
	resp, err := r.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if r.fallback == nil || ctx.Err() != nil {
		return nil, fmt.Errorf("LLM error: %w", err)
	}

	r.logger.Warn().Err(err).
		Str("primary", r.primary.Name()).
		Str("fallback", r.fallback.Name()).
		Msg("primary model failed, falling back")

	resp, err = r.fallback.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM error: %w", err)
	}
	return resp, nil
}
