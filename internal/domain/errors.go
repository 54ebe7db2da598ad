package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfig aborts a cycle before any state is touched.
	ErrMissingConfig = errors.New("missing configuration")
	// ErrCycleInProgress is returned when a cycle is requested while one runs.
	ErrCycleInProgress = errors.New("cycle already in progress")
)

// ErrorKind classifies adapter failures so callers can pick a recovery scope.
type ErrorKind string

const (
	KindUnknown   ErrorKind = "unknown"
	KindConfig    ErrorKind = "config"
	KindTransport ErrorKind = "transport"
	KindMalformed ErrorKind = "malformed"
	KindQuota     ErrorKind = "quota"
	KindRejected  ErrorKind = "rejected"
)

// AdapterError is the tagged failure returned by external adapters.
type AdapterError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError tags err with kind.
func NewAdapterError(op string, kind ErrorKind, err error) error {
	return &AdapterError{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the tag from err, defaulting to KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Kind
	}
	if errors.Is(err, ErrMissingConfig) {
		return KindConfig
	}
	return KindUnknown
}
