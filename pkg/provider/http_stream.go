package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dskvich/polychat/pkg/sse"
)

const maxErrorBodySize = 1 << 20

// eventInspector looks at a vendor event before it is handed out. It can end the
// stream or turn the event into an error.
type eventInspector func(ev sse.Event) (stop bool, err error)

type httpStream struct {
	body    io.ReadCloser
	events  *sse.Reader
	inspect eventInspector
}

func (s *httpStream) Recv() (any, error) {
	for {
		ev, err := s.events.Next()
		if err != nil {
			return nil, err
		}

		switch string(ev.Data) {
		case "[DONE]":
			return nil, io.EOF
		case "":
			continue
		}

		if s.inspect != nil {
			stop, err := s.inspect(ev)
			if err != nil {
				return nil, err
			}
			if stop {
				return nil, io.EOF
			}
		}
		return json.RawMessage(ev.Data), nil
	}
}

func (s *httpStream) Close() error {
	return s.body.Close()
}

// postJSON sends body and returns the response only when the vendor answered 2xx.
func postJSON(ctx context.Context, hc *http.Client, url string, header http.Header, body any, parseErr func([]byte) (code, message string)) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = header.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	code, message := parseErr(data)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return nil, &HTTPError{StatusCode: resp.StatusCode, Code: code, Message: message}
}

func newHTTPStream(resp *http.Response, inspect eventInspector) *httpStream {
	return &httpStream{
		body:    resp.Body,
		events:  sse.NewReader(resp.Body),
		inspect: inspect,
	}
}

// deltaText reads the text of a Claude or Gemini stream event.
func deltaText(data []byte) string {
	var chunk struct {
		Delta *struct {
			Text string `json:"text"`
		} `json:"delta"`
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return ""
	}

	if chunk.Delta != nil && chunk.Delta.Text != "" {
		return chunk.Delta.Text
	}
	if len(chunk.Candidates) > 0 && len(chunk.Candidates[0].Content.Parts) > 0 {
		return chunk.Candidates[0].Content.Parts[0].Text
	}
	return ""
}

func chunkBytes(chunk any) []byte {
	switch c := chunk.(type) {
	case json.RawMessage:
		return c
	case []byte:
		return c
	case string:
		return []byte(c)
	}
	return nil
}
