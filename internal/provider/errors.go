package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind string

const (
	// KindTransient covers timeouts and rate limits; callers may retry with
	// bounded backoff.
	KindTransient ErrorKind = "transient"

	// KindAuth means the provider credential is expired or revoked. Never
	// retried; the user has to reconnect the calendar.
	KindAuth ErrorKind = "auth"

	// KindPermanent means the provider rejected the request outright.
	KindPermanent ErrorKind = "permanent"
)

// Error is a failed provider call. Provider errors never fail the local
// operation; orchestrators record them in the result payload.
type Error struct {
	Provider string
	Kind     ErrorKind
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Kind)
}

func Transient(providerID, format string, args ...any) *Error {
	return &Error{Provider: providerID, Kind: KindTransient, Message: fmt.Sprintf(format, args...)}
}

func Auth(providerID, format string, args ...any) *Error {
	return &Error{Provider: providerID, Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

func Permanent(providerID, format string, args ...any) *Error {
	return &Error{Provider: providerID, Kind: KindPermanent, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies an error from a provider call. Plain transport failures
// (timeouts, connection resets) count as transient.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	return KindPermanent
}

// statusKind maps a provider HTTP status onto the taxonomy.
func statusKind(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429 || status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

func statusError(providerID string, status int, body []byte) *Error {
	return &Error{
		Provider: providerID,
		Kind:     statusKind(status),
		Message:  fmt.Sprintf("status %d: %s", status, truncate(body, 200)),
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	return string(b[:n]) + "..."
}
