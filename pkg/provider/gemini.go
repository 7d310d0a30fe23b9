package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/dskvich/polychat/pkg/domain"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-1.5-flash"
	geminiModelRole    = "model"
)

type geminiAdapter struct {
	hc           *http.Client
	apiKey       string
	baseURL      string
	defaultModel string
	style        formatStyle
	retry        retryPolicy
}

func NewGemini(cfg VendorConfig, hc *http.Client) *geminiAdapter {
	return &geminiAdapter{
		hc:           lo.Ternary(hc != nil, hc, http.DefaultClient),
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(lo.CoalesceOrEmpty(cfg.BaseURL, geminiBaseURL), "/"),
		defaultModel: lo.CoalesceOrEmpty(cfg.DefaultModel, defaultGeminiModel),
		style: formatStyle{
			assistantRole: geminiModelRole,
			visionMarkers: []string{"gemini"},
		},
		retry: defaultRetryPolicy(),
	}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (a *geminiAdapter) Name() domain.ProviderName {
	return domain.ProviderGemini
}

func (a *geminiAdapter) FormatMessages(in FormatInput) FormattedRequest {
	return formatMessages(in, a.style)
}

func (a *geminiAdapter) GenerateChatStream(ctx context.Context, req FormattedRequest, persona domain.Persona) (Stream, error) {
	model := lo.CoalesceOrEmpty(persona.ModelCodeName, a.defaultModel)

	body := geminiRequest{
		Contents: lo.Map(withInlineSystem(req), toGeminiContent),
	}
	if params := persona.Capabilities.SupportedParameters; params.Temperature != nil || params.MaxTokens != nil {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokens,
		}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", a.baseURL, url.PathEscape(model))

	header := http.Header{}
	header.Set("x-goog-api-key", a.apiKey)

	var resp *http.Response
	err := a.retry.do(ctx, domain.ProviderGemini, func() error {
		var err error
		resp, err = postJSON(ctx, a.hc, endpoint, header, body, parseGeminiError)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newHTTPStream(resp, nil), nil
}

func toGeminiContent(m FormattedMessage, _ int) geminiContent {
	var parts []geminiPart
	if m.Image != nil {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: m.Image.MediaType, Data: m.Image.Data}})
	}
	parts = append(parts, geminiPart{Text: m.Content})
	return geminiContent{Role: m.Role, Parts: parts}
}

func parseGeminiError(data []byte) (string, string) {
	var e geminiError
	if err := json.Unmarshal(data, &e); err != nil {
		return "", strings.TrimSpace(string(data))
	}
	return e.Error.Status, e.Error.Message
}

func (a *geminiAdapter) ExtractContent(chunk any) string {
	return deltaText(chunkBytes(chunk))
}

func (a *geminiAdapter) GenerateImage(context.Context, domain.ImageRequest) (*domain.Image, error) {
	return nil, domain.ErrImageNotSupported
}
