// Package sse reads and writes text/event-stream frames.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// MaxLineSize bounds a single SSE line. Vendor chunks are far below it.
const MaxLineSize = 1 << 20

var ErrLineTooLong = errors.New("sse: line exceeds maximum size")

type Event struct {
	Name string
	Data []byte
}

// Reader splits a byte stream into events. Lines that arrive split across reads
// are buffered until their newline shows up.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 32*1024)}
}

// Next returns the next event with a data field. It returns io.EOF once the
// stream ends; a trailing event without its blank line is still returned first.
func (s *Reader) Next() (Event, error) {
	var ev Event
	var data [][]byte

	for {
		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}

		if len(line) == 0 {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			ev = Event{}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte(":")):
			// comment / keep-alive
		case bytes.HasPrefix(line, []byte("event:")):
			ev.Name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			d := line[len("data:"):]
			if len(d) > 0 && d[0] == ' ' {
				d = d[1:]
			}
			data = append(data, d)
		}
	}
}

func (s *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := s.r.ReadLine()
		if err != nil {
			if len(line) > 0 && errors.Is(err, io.EOF) {
				return line, nil
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > MaxLineSize {
			return nil, ErrLineTooLong
		}
		if !isPrefix {
			return line, nil
		}
	}
}
