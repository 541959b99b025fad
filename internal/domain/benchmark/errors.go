package benchmark

import (
	"errors"
	"fmt"
)

// Kind classifies why an evaluation or one of its tasks failed.
type Kind string

const (
	KindDocumentNotFound       Kind = "document_not_found"
	KindSectionMissing         Kind = "section_missing"
	KindGenerationFailure      Kind = "generation_failure"
	KindCandidateTimeout       Kind = "candidate_timeout"
	KindCandidateProtocolError Kind = "candidate_protocol_error"
	KindCacheCorruption        Kind = "cache_corruption"
	KindInvalidRequest         Kind = "invalid_request"
)

// Sentinels for errors.Is checks against each kind.
var (
	ErrDocumentNotFound       = errors.New("document not found")
	ErrSectionMissing         = errors.New("section missing")
	ErrGenerationFailure      = errors.New("reference generation failed")
	ErrCandidateTimeout       = errors.New("candidate timed out")
	ErrCandidateProtocolError = errors.New("candidate protocol error")
	ErrCacheCorruption        = errors.New("cache entry corrupt")
	ErrInvalidRequest         = errors.New("invalid evaluation request")
)

var kindSentinels = map[Kind]error{
	KindDocumentNotFound:       ErrDocumentNotFound,
	KindSectionMissing:         ErrSectionMissing,
	KindGenerationFailure:      ErrGenerationFailure,
	KindCandidateTimeout:       ErrCandidateTimeout,
	KindCandidateProtocolError: ErrCandidateProtocolError,
	KindCacheCorruption:        ErrCacheCorruption,
	KindInvalidRequest:         ErrInvalidRequest,
}

// Error is a classified failure, optionally tied to one task.
type Error struct {
	Kind Kind
	Task TaskID
	Err  error
}

// NewError wraps err with kind and task (task may be empty).
func NewError(kind Kind, task TaskID, err error) *Error {
	return &Error{Kind: kind, Task: task, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Task != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Task)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}

// IsFatal reports whether kind aborts a whole run rather than one task.
func IsFatal(kind Kind) bool {
	switch kind {
	case KindDocumentNotFound, KindGenerationFailure, KindInvalidRequest:
		return true
	}
	return false
}
