// Package apperr defines the structured error taxonomy shared by all layers.
// Every failure crossing a package boundary carries a Kind so that the
// orchestrator can decide retry-vs-abort and the HTTP layer can map to a
// transport status without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry and status-mapping decisions.
type Kind int

const (
	// Internal is the fallback for unclassified failures.
	Internal Kind = iota

	// Input marks a malformed or out-of-bounds request. Non-retryable.
	Input

	// Authorization marks a request for a resource the caller does not own.
	Authorization

	// NotFound marks a missing conversation, model, or system prompt.
	NotFound

	// ContextOverflow marks a request that cannot fit the model's context
	// window even after history trimming. The caller must shorten input.
	ContextOverflow

	// ConversationBusy marks a collision with an in-flight completion on
	// the same conversation. Retryable by the caller after a short delay.
	ConversationBusy

	// ProviderRateLimit marks an upstream 429. Retried internally by the
	// orchestrator; never surfaced to callers directly.
	ProviderRateLimit

	// ProviderUnavailable marks an upstream network, auth, or timeout
	// failure.
	ProviderUnavailable

	// ProviderContent marks a provider-side safety rejection. Non-retryable.
	ProviderContent

	// NotImplemented marks a defined but unbuilt provider variant, so
	// callers can offer a fallback instead of treating it as an outage.
	NotImplemented

	// UpstreamUnavailable is surfaced after the internal retry budget for
	// ProviderRateLimit is exhausted.
	UpstreamUnavailable

	// Store marks a persistence failure. Always surfaced: reporting success
	// for a turn that was never committed is unacceptable.
	Store
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Authorization:
		return "authorization"
	case NotFound:
		return "not_found"
	case ContextOverflow:
		return "context_overflow"
	case ConversationBusy:
		return "conversation_busy"
	case ProviderRateLimit:
		return "provider_rate_limit"
	case ProviderUnavailable:
		return "provider_unavailable"
	case ProviderContent:
		return "provider_content"
	case NotImplemented:
		return "not_implemented"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case Store:
		return "store"
	default:
		return "internal"
	}
}

// Error is a structured failure value: a Kind plus a human-readable message
// and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs a new error of the given kind.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain, or Internal if none is found.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether the error chain contains the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Class groups kinds for callers that only care who is at fault.
type Class int

const (
	ClassServer Class = iota
	ClassClient
	ClassUpstream
)

// ClassOf maps a kind to its fault class: client error, upstream error, or
// server error.
func ClassOf(kind Kind) Class {
	switch kind {
	case Input, Authorization, NotFound, ContextOverflow, ConversationBusy, ProviderContent:
		return ClassClient
	case ProviderRateLimit, ProviderUnavailable, UpstreamUnavailable:
		return ClassUpstream
	default:
		return ClassServer
	}
}

// HTTPStatus maps an error chain to the transport status code the HTTP
// layer should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Input:
		return http.StatusBadRequest
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ConversationBusy:
		return http.StatusConflict
	case ContextOverflow:
		return http.StatusRequestEntityTooLarge
	case ProviderContent:
		return http.StatusUnprocessableEntity
	case NotImplemented:
		return http.StatusNotImplemented
	case ProviderRateLimit, ProviderUnavailable, UpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
