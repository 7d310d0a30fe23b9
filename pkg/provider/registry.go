package provider

import (
	"log/slog"
	"net/http"

	"github.com/dskvich/polychat/pkg/domain"
)

type Registry struct {
	openai     *openAIAdapter
	claude     Adapter
	perplexity Adapter
	gemini     Adapter
	x          Adapter
}

func NewRegistry(cfg Config) *Registry {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Registry{
		openai:     NewOpenAI(cfg.OpenAI, hc),
		claude:     NewClaude(cfg.Claude, hc),
		perplexity: NewPerplexity(cfg.Perplexity, hc),
		gemini:     NewGemini(cfg.Gemini, hc),
		x:          NewX(cfg.X, hc),
	}
}

// Get returns the adapter for name. Unknown and empty names get the OpenAI adapter.
func (r *Registry) Get(name string) Adapter {
	p, ok := domain.ParseProviderName(name)
	if !ok {
		slog.Warn("Unknown provider, falling back to openai", "provider", name)
		return r.openai
	}

	switch p {
	case domain.ProviderOpenAI:
		return r.openai
	case domain.ProviderClaude:
		return r.claude
	case domain.ProviderPerplexity:
		return r.perplexity
	case domain.ProviderGemini:
		return r.gemini
	case domain.ProviderX:
		return r.x
	default:
		slog.Warn("Provider has no adapter, falling back to openai", "provider", p)
		return r.openai
	}
}

func (r *Registry) Names() []domain.ProviderName {
	return domain.AllProviders
}

// Titles exposes the adapter used for conversation titles.
func (r *Registry) Titles() *openAIAdapter {
	return r.openai
}
