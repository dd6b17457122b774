package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ProviderUnavailable, cause, "calling openai")
	wrapped := fmt.Errorf("generate: %w", err)

	assert.Equal(t, ProviderUnavailable, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, err))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestKindOf_UnclassifiedDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Input, http.StatusBadRequest},
		{Authorization, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{ConversationBusy, http.StatusConflict},
		{ContextOverflow, http.StatusRequestEntityTooLarge},
		{ProviderContent, http.StatusUnprocessableEntity},
		{NotImplemented, http.StatusNotImplemented},
		{UpstreamUnavailable, http.StatusBadGateway},
		{ProviderUnavailable, http.StatusBadGateway},
		{Store, http.StatusInternalServerError},
		{Internal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(E(tt.kind, "test")))
		})
	}
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassClient, ClassOf(Input))
	assert.Equal(t, ClassClient, ClassOf(ContextOverflow))
	assert.Equal(t, ClassUpstream, ClassOf(UpstreamUnavailable))
	assert.Equal(t, ClassServer, ClassOf(Store))
}
