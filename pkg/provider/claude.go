package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/sse"
)

const (
	claudeBaseURL          = "https://api.anthropic.com"
	claudeAPIVersion       = "2023-06-01"
	defaultClaudeModel     = "claude-3-5-sonnet-latest"
	defaultClaudeMaxTokens = 4096
)

type claudeAdapter struct {
	hc           *http.Client
	apiKey       string
	baseURL      string
	defaultModel string
	style        formatStyle
	retry        retryPolicy
}

func NewClaude(cfg VendorConfig, hc *http.Client) *claudeAdapter {
	return &claudeAdapter{
		hc:           lo.Ternary(hc != nil, hc, http.DefaultClient),
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(lo.CoalesceOrEmpty(cfg.BaseURL, claudeBaseURL), "/"),
		defaultModel: lo.CoalesceOrEmpty(cfg.DefaultModel, defaultClaudeModel),
		style: formatStyle{
			assistantRole: string(domain.RoleAssistant),
			visionMarkers: []string{"claude-3", "claude-sonnet", "claude-opus", "claude-haiku"},
		},
		retry: defaultRetryPolicy(),
	}
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature *float32        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type claudeBlock struct {
	Type   string             `json:"type"`
	Text   string             `json:"text,omitempty"`
	Source *claudeImageSource `json:"source,omitempty"`
}

type claudeImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *claudeAdapter) Name() domain.ProviderName {
	return domain.ProviderClaude
}

func (a *claudeAdapter) FormatMessages(in FormatInput) FormattedRequest {
	return formatMessages(in, a.style)
}

func (a *claudeAdapter) GenerateChatStream(ctx context.Context, req FormattedRequest, persona domain.Persona) (Stream, error) {
	params := persona.Capabilities.SupportedParameters
	body := claudeRequest{
		Model:       lo.CoalesceOrEmpty(persona.ModelCodeName, a.defaultModel),
		MaxTokens:   defaultClaudeMaxTokens,
		System:      req.System,
		Messages:    lo.Map(req.Messages, toClaudeMessage),
		Temperature: params.Temperature,
		Stream:      true,
	}
	if params.MaxTokens != nil {
		body.MaxTokens = *params.MaxTokens
	}

	header := http.Header{}
	header.Set("x-api-key", a.apiKey)
	header.Set("anthropic-version", claudeAPIVersion)

	var resp *http.Response
	err := a.retry.do(ctx, domain.ProviderClaude, func() error {
		var err error
		resp, err = postJSON(ctx, a.hc, a.baseURL+"/v1/messages", header, body, parseClaudeError)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newHTTPStream(resp, inspectClaudeEvent), nil
}

func toClaudeMessage(m FormattedMessage, _ int) claudeMessage {
	if m.Image == nil {
		return claudeMessage{Role: m.Role, Content: m.Content}
	}
	return claudeMessage{
		Role: m.Role,
		Content: []claudeBlock{
			{
				Type: "image",
				Source: &claudeImageSource{
					Type:      "base64",
					MediaType: m.Image.MediaType,
					Data:      m.Image.Data,
				},
			},
			{Type: "text", Text: m.Content},
		},
	}
}

func parseClaudeError(data []byte) (string, string) {
	var e claudeError
	if err := json.Unmarshal(data, &e); err != nil {
		return "", strings.TrimSpace(string(data))
	}
	return e.Error.Type, e.Error.Message
}

func inspectClaudeEvent(ev sse.Event) (bool, error) {
	switch ev.Name {
	case "message_stop":
		return true, nil
	case "error":
		code, message := parseClaudeError([]byte(ev.Data))
		return false, &HTTPError{
			StatusCode: lo.Ternary(code == "overloaded_error", statusOverloaded, http.StatusInternalServerError),
			Code:       code,
			Message:    message,
		}
	}
	return false, nil
}

func (a *claudeAdapter) ExtractContent(chunk any) string {
	return deltaText(chunkBytes(chunk))
}

func (a *claudeAdapter) GenerateImage(context.Context, domain.ImageRequest) (*domain.Image, error) {
	return nil, domain.ErrImageNotSupported
}
