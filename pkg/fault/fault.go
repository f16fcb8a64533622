package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrExpired  = errors.New("resource expired")
)

// Kind classifies a fault so boundaries can map it to a status code
// without inspecting message text.
type Kind int

const (
	KindValidation Kind = iota
	KindUpstream
	KindPersistence
	KindDataQuality
	KindInternal
)

type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", f.kindString(), f.Message, f.Err)
	}
	return fmt.Sprintf("[%s] %s", f.kindString(), f.Message)
}

// Unwrap allows errors.Is and errors.As to work.
func (f *Fault) Unwrap() error {
	return f.Err
}

func (f *Fault) kindString() string {
	switch f.Kind {
	case KindValidation:
		return "ValidationError"
	case KindUpstream:
		return "UpstreamError"
	case KindPersistence:
		return "PersistenceError"
	case KindDataQuality:
		return "DataQualityError"
	default:
		return "InternalError"
	}
}

// Validation marks rep-supplied input rejected before any external call.
func Validation(msg string, err error) error {
	return &Fault{Kind: KindValidation, Message: msg, Err: err}
}

// Upstream marks a completion-service failure (unreachable, empty, non-JSON).
func Upstream(msg string, err error) error {
	return &Fault{Kind: KindUpstream, Message: msg, Err: err}
}

// Persistence marks a data-store write failure. Kept distinct from
// Upstream so callers know generated content may exist but was not saved.
func Persistence(msg string, err error) error {
	return &Fault{Kind: KindPersistence, Message: msg, Err: err}
}

// DataQuality marks model output that parsed but violated a closed contract,
// e.g. a recommendation outside the allowed set.
func DataQuality(msg string, err error) error {
	return &Fault{Kind: KindDataQuality, Message: msg, Err: err}
}

// Internal marks everything else.
func Internal(msg string, err error) error {
	return &Fault{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the fault kind, defaulting to KindInternal for plain errors.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message for boundary responses.
func MessageOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Message
	}
	return "internal error"
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}
