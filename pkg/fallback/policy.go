// Package fallback decides what a user sees when a provider fails and which provider
// to try next.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/provider"
)

type Kind string

const (
	KindRateLimit     Kind = "rate_limit"
	KindAuth          Kind = "auth"
	KindTimeout       Kind = "timeout"
	KindContentPolicy Kind = "content_policy"
	KindUnknown       Kind = "unknown"
)

type Classification struct {
	Kind Kind
	// FallbackProvider is empty when switching providers would not help.
	FallbackProvider domain.ProviderName
	Message          string
}

// DefaultOrder is tried left to right when a request fails.
var DefaultOrder = []domain.ProviderName{
	domain.ProviderOpenAI,
	domain.ProviderClaude,
	domain.ProviderGemini,
	domain.ProviderX,
	domain.ProviderPerplexity,
}

var (
	rateLimitKeywords = []string{"rate limit", "rate_limit", "ratelimit", "too many requests", "quota", "overloaded", "resource_exhausted", "capacity"}
	authKeywords      = []string{"api key", "api_key", "apikey", "x-api-key", "unauthorized", "authentication", "permission denied", "forbidden"}
	timeoutKeywords   = []string{"timeout", "timed out", "deadline exceeded", "etimedout", "econnreset", "connection reset", "socket hang up"}

	// Status codes quoted in vendor messages count only as whole numbers, so
	// request ids and byte counts such as req_1401 do not match.
	authStatusRe      = regexp.MustCompile(`\b(401|403)\b`)
	rateLimitStatusRe = regexp.MustCompile(`\b429\b`)
)

var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=\-]+`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{4,}`), "sk-[REDACTED]"},
	{regexp.MustCompile(`\bkey-[A-Za-z0-9_\-]{4,}`), "key-[REDACTED]"},
	{regexp.MustCompile(`\bxai-[A-Za-z0-9_\-]{4,}`), "xai-[REDACTED]"},
	{regexp.MustCompile(`\bAIza[A-Za-z0-9_\-]{20,}`), "[REDACTED]"},
	{regexp.MustCompile(`\bpplx-[A-Za-z0-9_\-]{4,}`), "pplx-[REDACTED]"},
}

// Recommend classifies err raised by the current provider. The returned message is
// safe to show to users.
func Recommend(err error, current string, order []domain.ProviderName) Classification {
	if err == nil {
		return Classification{Kind: KindUnknown}
	}

	text := err.Error()
	lower := strings.ToLower(text)
	name := providerLabel(current)
	next := nextProvider(current, order)

	var c Classification
	switch {
	case strings.Contains(lower, "file"):
		c = Classification{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("%s could not process the attached file: %s", name, text),
		}
	case provider.IsVendorAuth(err) || containsAny(lower, authKeywords) || authStatusRe.MatchString(lower):
		c = Classification{
			Kind:    KindAuth,
			Message: fmt.Sprintf("Authentication with %s failed. Please check your API keys.", name),
		}
	case provider.IsContentPolicy(err) || strings.Contains(lower, "content_policy") || strings.Contains(lower, "content policy"):
		c = Classification{
			Kind:    KindContentPolicy,
			Message: text,
		}
	case provider.IsRateLimited(err) || containsAny(lower, rateLimitKeywords) || rateLimitStatusRe.MatchString(lower):
		c = Classification{
			Kind:             KindRateLimit,
			FallbackProvider: next,
			Message:          fmt.Sprintf("%s is receiving too many requests right now.%s", name, suggestion(next)),
		}
	case errors.Is(err, context.DeadlineExceeded) || containsAny(lower, timeoutKeywords):
		c = Classification{
			Kind:             KindTimeout,
			FallbackProvider: next,
			Message:          fmt.Sprintf("%s took too long to respond.%s", name, suggestion(next)),
		}
	case next != "":
		c = Classification{
			Kind:             KindUnknown,
			FallbackProvider: next,
			Message:          fmt.Sprintf("%s failed: %s.%s", name, text, suggestion(next)),
		}
	default:
		c = Classification{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("%s failed: %s", name, text),
		}
	}

	c.Message = Redact(c.Message)
	return c
}

// Redact masks API-key shaped substrings.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// nextProvider returns the provider after current in order, wrapping around and
// skipping current itself.
func nextProvider(current string, order []domain.ProviderName) domain.ProviderName {
	cur, _ := domain.ParseProviderName(current)

	start := lo.IndexOf(order, cur) + 1
	for i := 0; i < len(order); i++ {
		candidate := order[(start+i)%len(order)]
		if candidate != cur && candidate != "" {
			return candidate
		}
	}
	return ""
}

func suggestion(next domain.ProviderName) string {
	if next == "" {
		return ""
	}
	return fmt.Sprintf(" Try %s instead.", providerLabel(string(next)))
}

func providerLabel(name string) string {
	p, ok := domain.ParseProviderName(name)
	if !ok {
		return lo.Ternary(name == "", "The provider", name)
	}

	switch p {
	case domain.ProviderOpenAI:
		return "OpenAI"
	case domain.ProviderClaude:
		return "Claude"
	case domain.ProviderPerplexity:
		return "Perplexity"
	case domain.ProviderGemini:
		return "Gemini"
	case domain.ProviderX:
		return "Grok"
	}
	return string(p)
}

func containsAny(s string, keywords []string) bool {
	return lo.ContainsBy(keywords, func(k string) bool {
		return strings.Contains(s, k)
	})
}
