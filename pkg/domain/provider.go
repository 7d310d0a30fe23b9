package domain

import "strings"

type ProviderName string

const (
	ProviderOpenAI     ProviderName = "openai"
	ProviderClaude     ProviderName = "claude"
	ProviderPerplexity ProviderName = "perplexity"
	ProviderGemini     ProviderName = "gemini"
	ProviderX          ProviderName = "x"
)

var AllProviders = []ProviderName{
	ProviderOpenAI,
	ProviderClaude,
	ProviderPerplexity,
	ProviderGemini,
	ProviderX,
}

// ParseProviderName maps loose spellings to a known provider. The second result is false
// for empty or unknown names.
func ParseProviderName(name string) (ProviderName, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "gpt", "chatgpt":
		return ProviderOpenAI, true
	case "claude", "anthropic":
		return ProviderClaude, true
	case "perplexity", "pplx":
		return ProviderPerplexity, true
	case "gemini", "google":
		return ProviderGemini, true
	case "x", "xai", "grok":
		return ProviderX, true
	}
	return "", false
}
