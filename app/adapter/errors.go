package adapter

import (
	"fmt"
)

// TransportError covers timeouts, connection failures, non-2xx responses and
// upstream error envelopes.
type TransportError struct {
	SourceID   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error for %s (HTTP %d): %v", e.SourceID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error for %s: %v", e.SourceID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means the upstream document could not be read at all.
type ParseError struct {
	SourceID string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.SourceID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
