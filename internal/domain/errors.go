package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed submission so callers can report it without
// inspecting messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingSource
	KindFetch
	KindDecode
	KindUnsupportedLayout
	KindWorker
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingSource:
		return "missing_source"
	case KindFetch:
		return "fetch"
	case KindDecode:
		return "decode"
	case KindUnsupportedLayout:
		return "unsupported_layout"
	case KindWorker:
		return "worker"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// ErrBusy is returned when a submission is triggered while another is outstanding.
var ErrBusy = errors.New("transcription already in progress")

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is formatted like fmt.Errorf.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
