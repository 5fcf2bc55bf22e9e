package client

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 1024 * 1024
)

// RecordStream is a forward-only sequence of upstream records.
//
// Recv returns io.EOF once the upstream closed the connection or sent its
// final record. A *DecodeError means a single element was malformed and the
// stream may still be read; any other error is terminal.
type RecordStream interface {
	Recv() (Record, error)
	Close() error
}

type lineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  func([]byte) (Record, error)
	done    bool
}

func newLineStream(body io.ReadCloser, decode func([]byte) (Record, error)) *lineStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBuffer)
	return &lineStream{
		body:    body,
		scanner: scanner,
		decode:  decode,
	}
}

func (s *lineStream) Recv() (Record, error) {
	if s.done {
		return Record{}, io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := s.decode(line)
		if err != nil {
			return Record{}, &DecodeError{Line: bytes.Clone(line), Err: err}
		}
		if record.Done {
			s.done = true
		}
		return record, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("scanner error: %w", err)
	}
	return Record{}, io.EOF
}

func (s *lineStream) Close() error {
	s.done = true
	return s.body.Close()
}
