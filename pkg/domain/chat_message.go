package domain

// StreamEvent is the JSON payload of one SSE frame sent to chat clients.
type StreamEvent struct {
	Content          string `json:"content,omitempty"`
	Error            string `json:"error,omitempty"`
	FallbackProvider string `json:"fallbackProvider,omitempty"`
}

// Control markers some providers leak into their text. They are never shown to users.
var StreamControlMarkers = []string{
	"streaming_started",
	"streaming_completed",
	"stream_ended",
}
