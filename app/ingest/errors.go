package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/lysyi3m/content-comb/app/adapter"
)

var (
	// ErrRegistryUnavailable is the only error that aborts a whole run.
	ErrRegistryUnavailable = errors.New("source registry unavailable")
	ErrRunInProgress       = errors.New("an ingestion run is already in progress")
)

// PersistenceError reports upsert batches or checkpoint writes that failed
// for one source.
type PersistenceError struct {
	SourceID      string
	FailedBatches int
	Err           error
}

func (e *PersistenceError) Error() string {
	if e.FailedBatches > 0 {
		return fmt.Sprintf("persistence error for %s (%d failed batches): %v", e.SourceID, e.FailedBatches, e.Err)
	}
	return fmt.Sprintf("persistence error for %s: %v", e.SourceID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type ErrorKind string

const (
	ErrorKindTransport   ErrorKind = "transport"
	ErrorKindParse       ErrorKind = "parse"
	ErrorKindPersistence ErrorKind = "persistence"
	ErrorKindCancelled   ErrorKind = "cancelled"
	ErrorKindInternal    ErrorKind = "internal"
)

func classifyError(err error) ErrorKind {
	var transportErr *adapter.TransportError
	var parseErr *adapter.ParseError
	var persistenceErr *PersistenceError

	switch {
	case errors.As(err, &persistenceErr):
		return ErrorKindPersistence
	case errors.As(err, &parseErr):
		return ErrorKindParse
	case errors.As(err, &transportErr):
		return ErrorKindTransport
	case errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	default:
		return ErrorKindInternal
	}
}
