// Package provider puts the chat vendors (OpenAI, Claude, Perplexity, Gemini and X)
// behind one streaming contract.
//
// An Adapter turns the generic conversation into the vendor's request shape,
// opens the vendor stream and pulls plain text out of each vendor chunk. Adapters
// are built once from explicit configuration and are safe for concurrent use.
package provider

import (
	"context"
	"net/http"

	"github.com/dskvich/polychat/pkg/domain"
)

type Adapter interface {
	Name() domain.ProviderName

	// FormatMessages never fails: malformed input degrades to a placeholder greeting.
	FormatMessages(in FormatInput) FormattedRequest

	// GenerateChatStream opens the vendor stream. The stream lives as long as ctx.
	GenerateChatStream(ctx context.Context, req FormattedRequest, persona domain.Persona) (Stream, error)

	// ExtractContent returns the raw text delta of one chunk, or "" when there
	// is none. Formatting needs the whole stream; see TextStream.
	ExtractContent(chunk any) string

	GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error)
}

// Stream yields vendor chunks until Recv returns io.EOF.
type Stream interface {
	Recv() (any, error)
	Close() error
}

type FormatInput struct {
	Persona          domain.Persona
	PreviousMessages []domain.ChatMessage
	File             *domain.File
}

type FormattedRequest struct {
	// System is set when the instructions travel outside the message list.
	System   string
	Messages []FormattedMessage
}

type FormattedMessage struct {
	// Role uses the vendor vocabulary, e.g. "model" for Gemini's assistant turns.
	Role    string
	Content string
	Image   *ImageAttachment
}

type ImageAttachment struct {
	MediaType string
	Data      string // base64 without the data URL prefix
}

type VendorConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

type Config struct {
	HTTPClient *http.Client

	OpenAI     VendorConfig
	Claude     VendorConfig
	Perplexity VendorConfig
	Gemini     VendorConfig
	X          VendorConfig
}
