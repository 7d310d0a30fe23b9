package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"

	"github.com/dskvich/polychat/pkg/domain"
)

const (
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultPerplexityModel = "sonar"
	defaultXModel          = "grok-2-latest"
	defaultImageModel      = openai.CreateImageModelDallE3

	perplexityBaseURL = "https://api.perplexity.ai"
	xBaseURL          = "https://api.x.ai/v1"

	titleTemperature = 0.7
	titleMaxTokens   = 60
	titleMaxRunes    = 80
)

// openAIAdapter serves every vendor that speaks the OpenAI chat completions API.
type openAIAdapter struct {
	name         domain.ProviderName
	api          *openai.Client
	defaultModel string
	style        formatStyle
	// systemRole sends FormattedRequest.System as a leading system message instead of
	// folding it into the first user turn.
	systemRole bool
	images     bool
	retry      retryPolicy
}

func NewOpenAI(cfg VendorConfig, hc *http.Client) *openAIAdapter {
	return &openAIAdapter{
		name:         domain.ProviderOpenAI,
		api:          newOpenAIClient(cfg, "", hc),
		defaultModel: lo.CoalesceOrEmpty(cfg.DefaultModel, defaultOpenAIModel),
		style: formatStyle{
			assistantRole: string(domain.RoleAssistant),
			systemMessage: true,
			visionMarkers: []string{"gpt-4o", "gpt-4-turbo", "gpt-4.1", "gpt-5", "vision"},
		},
		images: true,
		retry:  defaultRetryPolicy(),
	}
}

func NewPerplexity(cfg VendorConfig, hc *http.Client) *openAIAdapter {
	return &openAIAdapter{
		name:         domain.ProviderPerplexity,
		api:          newOpenAIClient(cfg, perplexityBaseURL, hc),
		defaultModel: lo.CoalesceOrEmpty(cfg.DefaultModel, defaultPerplexityModel),
		style: formatStyle{
			assistantRole: string(domain.RoleAssistant),
			systemMessage: true,
		},
		retry: defaultRetryPolicy(),
	}
}

func NewX(cfg VendorConfig, hc *http.Client) *openAIAdapter {
	return &openAIAdapter{
		name:         domain.ProviderX,
		api:          newOpenAIClient(cfg, xBaseURL, hc),
		defaultModel: lo.CoalesceOrEmpty(cfg.DefaultModel, defaultXModel),
		style: formatStyle{
			assistantRole: string(domain.RoleAssistant),
			visionMarkers: []string{"vision", "grok-4"},
		},
		systemRole: true,
		retry:      defaultRetryPolicy(),
	}
}

func newOpenAIClient(cfg VendorConfig, defaultBaseURL string, hc *http.Client) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if baseURL := lo.CoalesceOrEmpty(cfg.BaseURL, defaultBaseURL); baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		config.HTTPClient = hc
	}
	return openai.NewClientWithConfig(config)
}

func (a *openAIAdapter) Name() domain.ProviderName {
	return a.name
}

func (a *openAIAdapter) FormatMessages(in FormatInput) FormattedRequest {
	return formatMessages(in, a.style)
}

func (a *openAIAdapter) GenerateChatStream(ctx context.Context, req FormattedRequest, persona domain.Persona) (Stream, error) {
	request := a.chatRequest(req, persona)

	var stream *openai.ChatCompletionStream
	err := a.retry.do(ctx, a.name, func() error {
		var err error
		stream, err = a.api.CreateChatCompletionStream(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &openAIStream{stream: stream}, nil
}

func (a *openAIAdapter) chatRequest(req FormattedRequest, persona domain.Persona) openai.ChatCompletionRequest {
	model := lo.CoalesceOrEmpty(persona.ModelCodeName, a.defaultModel)
	request := openai.ChatCompletionRequest{
		Model:    model,
		Messages: a.vendorMessages(req),
		Stream:   true,
	}

	params := persona.Capabilities.SupportedParameters
	reasoning := isReasoningModel(model)
	if params.Temperature != nil && !reasoning {
		request.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		if reasoning {
			request.MaxCompletionTokens = *params.MaxTokens
		} else {
			request.MaxTokens = *params.MaxTokens
		}
	}
	return request
}

func (a *openAIAdapter) vendorMessages(req FormattedRequest) []openai.ChatCompletionMessage {
	messages := req.Messages
	switch {
	case req.System != "" && a.systemRole:
		messages = append([]FormattedMessage{{Role: string(domain.RoleSystem), Content: req.System}}, messages...)
	case req.System != "":
		messages = withInlineSystem(req)
	}

	return lo.Map(messages, func(m FormattedMessage, _ int) openai.ChatCompletionMessage {
		if m.Image == nil {
			return openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
		}
		return openai.ChatCompletionMessage{
			Role: m.Role,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    fmt.Sprintf("data:%s;base64,%s", m.Image.MediaType, m.Image.Data),
						Detail: openai.ImageURLDetailAuto,
					},
				},
				{Type: openai.ChatMessagePartTypeText, Text: m.Content},
			},
		}
	})
}

// isReasoningModel matches the o-series models that take max_completion_tokens and
// reject a custom temperature.
func isReasoningModel(model string) bool {
	model = strings.ToLower(model)
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}

func (a *openAIAdapter) ExtractContent(chunk any) string {
	var text string
	switch c := chunk.(type) {
	case openai.ChatCompletionStreamResponse:
		text = firstDelta(c)
	case *openai.ChatCompletionStreamResponse:
		if c != nil {
			text = firstDelta(*c)
		}
	case json.RawMessage:
		text = deltaFromJSON(c)
	case []byte:
		text = deltaFromJSON(c)
	case string:
		text = deltaFromJSON([]byte(c))
	}
	return text
}

func firstDelta(resp openai.ChatCompletionStreamResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Delta.Content
}

func deltaFromJSON(data []byte) string {
	var resp openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return ""
	}
	return firstDelta(resp)
}

func (a *openAIAdapter) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error) {
	if !a.images {
		return nil, domain.ErrImageNotSupported
	}

	req, err := normalizeImageRequest(req)
	if err != nil {
		return nil, err
	}

	request := openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          lo.CoalesceOrEmpty(req.Model, defaultImageModel),
		N:              1,
		Size:           string(req.Size),
		Quality:        string(req.Quality),
		Style:          string(req.Style),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}

	var resp openai.ImageResponse
	err = a.retry.do(ctx, a.name, func() error {
		var err error
		resp, err = a.api.CreateImage(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("image response is empty")
	}

	data := resp.Data[0]
	return &domain.Image{
		URL:           data.URL,
		B64JSON:       data.B64JSON,
		RevisedPrompt: data.RevisedPrompt,
	}, nil
}

func normalizeImageRequest(req domain.ImageRequest) (domain.ImageRequest, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return req, domain.NewValidationError("prompt is required")
	}

	req.Size = lo.CoalesceOrEmpty(req.Size, domain.Size1024x1024)
	req.Quality = lo.CoalesceOrEmpty(req.Quality, domain.QualityStandard)
	req.Style = lo.CoalesceOrEmpty(req.Style, domain.StyleVivid)

	if !slices.Contains(domain.ImageSizes, req.Size) {
		return req, domain.NewValidationError("unsupported image size %q", req.Size)
	}
	if !slices.Contains(domain.ImageQualities, req.Quality) {
		return req, domain.NewValidationError("unsupported image quality %q", req.Quality)
	}
	if !slices.Contains(domain.ImageStyles, req.Style) {
		return req, domain.NewValidationError("unsupported image style %q", req.Style)
	}
	return req, nil
}

// GenerateTitle asks for a short conversation title based on the first message.
func (a *openAIAdapter) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	if strings.TrimSpace(firstMessage) == "" {
		return "", errors.New("first message is empty")
	}

	resp, err := a.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.defaultModel,
		Temperature: titleTemperature,
		MaxTokens:   titleMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Write a short title (at most six words) for a conversation that starts with the user's message. Reply with the title only.",
			},
			{Role: openai.ChatMessageRoleUser, Content: firstMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating title completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("title completion has no choices")
	}

	title := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"'`)
	if title == "" {
		return "", errors.New("title completion is empty")
	}
	if r := []rune(title); len(r) > titleMaxRunes {
		title = string(r[:titleMaxRunes])
	}
	return title, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (any, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *openAIStream) Close() error {
	s.stream.Close()
	return nil
}
