package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can tell fatal failures from soft ones
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindMetadata
	KindClock
	KindTileFetch
	KindDirectory
	KindPersist
	KindPlatform
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindMetadata:
		return "metadata"
	case KindClock:
		return "clock"
	case KindTileFetch:
		return "tile-fetch"
	case KindDirectory:
		return "directory"
	case KindPersist:
		return "persist"
	case KindPlatform:
		return "platform"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind aborts a pipeline run
func (k Kind) Fatal() bool {
	return k != KindTileFetch && k != KindPlatform
}

// TileFailure tells the three ways a tile fetch can fail apart in logs
type TileFailure int

const (
	FailureNone TileFailure = iota
	FailureTransport
	FailureStatus
	FailureDecode
)

func (f TileFailure) String() string {
	switch f {
	case FailureTransport:
		return "transport"
	case FailureStatus:
		return "status"
	case FailureDecode:
		return "decode"
	default:
		return "none"
	}
}

// Error carries a classification tag plus an optional underlying cause
type Error struct {
	Kind    Kind
	Failure TileFailure // only set for KindTileFetch
	Op      string
	Err     error
}

func (e *Error) Error() string {
	tag := e.Kind.String()
	if e.Failure != FailureNone {
		tag = tag + "/" + e.Failure.String()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", tag, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %v", tag, e.Err)
	default:
		return fmt.Sprintf("[%s] %s", tag, e.Op)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error without an underlying cause
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Op: msg}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// TileFetch builds a KindTileFetch error with the given failure class
func TileFetch(failure TileFailure, op string, err error) *Error {
	return &Error{Kind: KindTileFetch, Failure: failure, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FailureOf returns the tile failure class of err, if any
func FailureOf(err error) TileFailure {
	var e *Error
	if errors.As(err, &e) {
		return e.Failure
	}
	return FailureNone
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
