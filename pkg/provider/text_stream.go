package provider

import (
	"errors"
	"io"

	"github.com/dskvich/polychat/pkg/latex"
)

// TextStream reads a vendor stream as formatted text deltas. It keeps one
// latex.StreamFormatter for the whole reply, so fenced code stays verbatim
// even when the fence markers arrive in different chunks.
type TextStream struct {
	stream  Stream
	adapter Adapter
	format  *latex.StreamFormatter
	done    bool
}

func NewTextStream(adapter Adapter, stream Stream) *TextStream {
	return &TextStream{
		stream:  stream,
		adapter: adapter,
		format:  latex.NewStreamFormatter(),
	}
}

// Next returns the next non-empty delta, or io.EOF once the vendor is done.
// On any other error the text held back so far is returned with it.
func (t *TextStream) Next() (string, error) {
	if t.done {
		return "", io.EOF
	}

	for {
		chunk, err := t.stream.Recv()
		if err != nil {
			t.done = true
			rest := t.format.Flush()
			if errors.Is(err, io.EOF) && rest != "" {
				return rest, nil
			}
			return rest, err
		}

		if text := t.format.Write(t.adapter.ExtractContent(chunk)); text != "" {
			return text, nil
		}
	}
}

func (t *TextStream) Close() error {
	return t.stream.Close()
}
