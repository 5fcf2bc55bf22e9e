package client

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable is wrapped when the inference backend cannot be reached.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// UpstreamError is returned by Chat and ListModels before any record was read.
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		if e.Message != "" {
			return fmt.Sprintf("%s: upstream returned %d: %s", e.Op, e.StatusCode, e.Message)
		}
		return fmt.Sprintf("%s: upstream returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func unavailable(op string, err error) error {
	return &UpstreamError{Op: op, Err: fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)}
}

// DecodeError reports a single malformed stream line. The stream that
// returned it can still be read.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode upstream record %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
