package latex

import "strings"

const fence = "```"

// StreamFormatter formats a reply that arrives in pieces. A fence opened in
// one piece keeps the following pieces verbatim until it closes. Not safe for
// concurrent use; keep one per stream.
type StreamFormatter struct {
	inFence bool
	// pending holds trailing backticks that may be the start of a fence.
	pending string
}

func NewStreamFormatter() *StreamFormatter {
	return &StreamFormatter{}
}

// Write returns the formatted text of piece that is ready to be shown. Up to
// two trailing backticks are held back until the next Write or Flush.
func (f *StreamFormatter) Write(piece string) string {
	text := f.pending + piece
	f.pending = ""

	if n := trailingBackticks(text); n > 0 && n < len(fence) {
		f.pending = text[len(text)-n:]
		text = text[:len(text)-n]
	}

	var out strings.Builder
	for {
		i := strings.Index(text, fence)
		if i < 0 {
			break
		}
		out.WriteString(f.segment(text[:i]))
		out.WriteString(fence)
		f.inFence = !f.inFence
		text = text[i+len(fence):]
	}
	out.WriteString(f.segment(text))
	return out.String()
}

// Flush returns the text held back by Write. Call it once the stream ends.
func (f *StreamFormatter) Flush() string {
	rest := f.pending
	f.pending = ""
	return rest
}

// InFence reports whether the text written so far ends inside a fenced code block.
func (f *StreamFormatter) InFence() bool {
	return f.inFence
}

func (f *StreamFormatter) segment(s string) string {
	if f.inFence || s == "" {
		return s
	}
	return Format(s)
}

func trailingBackticks(s string) int {
	return len(s) - len(strings.TrimRight(s, "`"))
}
