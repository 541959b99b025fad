// Package errors sorts failures into transient, permanent and degraded so
// retry loops and circuit breakers can decide what to do with them.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"syscall"
)

// ErrorType is the retry class of an error.
type ErrorType int

const (
	ErrorTypePermanent ErrorType = iota
	ErrorTypeTransient
	ErrorTypeDegraded
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeDegraded:
		return "degraded"
	default:
		return "permanent"
	}
}

// TransientError is worth retrying: rate limits, 5xx, dropped connections.
type TransientError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string { return describe(e.Message, "transient error", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError will fail the same way again.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string { return describe(e.Message, "permanent error", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// DegradedError is returned without calling upstream while a breaker is open.
type DegradedError struct {
	Err     error
	Message string
}

func (e *DegradedError) Error() string { return describe(e.Message, "degraded", e.Err) }
func (e *DegradedError) Unwrap() error { return e.Err }

func describe(message, kind string, err error) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("%s: %v", kind, err)
}

// NewTransientError marks err as retryable. message, when set, replaces the
// error text shown to operators.
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError marks err as not retryable.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// NewDegradedError marks err as shed by a breaker.
func NewDegradedError(err error, message string) *DegradedError {
	return &DegradedError{Err: err, Message: message}
}

// GetErrorType classifies err. Explicit wrappers win; otherwise network
// failures and retryable HTTP statuses found in the message are transient
// and everything else is permanent.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}
	var (
		degraded  *DegradedError
		transient *TransientError
		permanent *PermanentError
	)
	switch {
	case errors.As(err, &degraded):
		return ErrorTypeDegraded
	case errors.As(err, &transient):
		return ErrorTypeTransient
	case errors.As(err, &permanent):
		return ErrorTypePermanent
	case errors.Is(err, context.Canceled):
		return ErrorTypePermanent
	case isNetworkError(err):
		return ErrorTypeTransient
	}
	if status := statusFromMessage(err.Error()); status > 0 && retryableStatus(status) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return err != nil && GetErrorType(err) == ErrorTypeTransient
}

// IsPermanent reports whether err will not go away on retry.
func IsPermanent(err error) bool {
	return err != nil && GetErrorType(err) == ErrorTypePermanent
}

// IsDegraded reports whether err came from an open breaker.
func IsDegraded(err error) bool {
	var degraded *DegradedError
	return errors.As(err, &degraded)
}

// ClassifyHTTPStatus wraps err by the retry semantics of an upstream status.
// A zero status falls back to classifying err itself.
func ClassifyHTTPStatus(status int, err error) error {
	if err == nil {
		err = fmt.Errorf("HTTP %d", status)
	}
	if status == 0 {
		if isNetworkError(err) {
			return &TransientError{Err: err}
		}
		return &PermanentError{Err: err}
	}
	if retryableStatus(status) {
		return &TransientError{Err: err, StatusCode: status}
	}
	return &PermanentError{Err: err, StatusCode: status}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500 && status != http.StatusNotImplemented
}

var statusPattern = regexp.MustCompile(`(?i)\b(?:http|status(?: code)?:?)\s*(\d{3})\b`)

func statusFromMessage(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	status, _ := strconv.Atoi(m[1])
	return status
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE, syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout)
}
