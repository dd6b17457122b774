package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"convoserve/internal/apperr"
)

// classifyTransportError maps request-level failures (network, timeout,
// cancellation) to the provider error taxonomy.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.ProviderUnavailable, err, "%s request timed out", provider)
	}
	if errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.ProviderUnavailable, err, "%s request canceled", provider)
	}
	return apperr.Wrap(apperr.ProviderUnavailable, err, "%s request failed", provider)
}

// classifyStatusError maps non-2xx vendor responses to the provider error
// taxonomy. Safety rejections are detected from the vendor error payload so
// the caller can distinguish policy blocks from outages.
func classifyStatusError(provider string, status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return apperr.E(apperr.ProviderRateLimit, "%s rate limited: %s", provider, truncateBody(body))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.E(apperr.ProviderUnavailable, "%s auth failure (status %d)", provider, status)
	case status >= 500:
		return apperr.E(apperr.ProviderUnavailable, "%s returned status %d: %s", provider, status, truncateBody(body))
	case isContentRejection(body):
		return apperr.E(apperr.ProviderContent, "%s rejected the request: %s", provider, truncateBody(body))
	default:
		return apperr.E(apperr.ProviderUnavailable, "%s returned status %d: %s", provider, status, truncateBody(body))
	}
}

func isContentRejection(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"content_filter", "content_policy", "safety", "blocked"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncateBody(body string) string {
	const max = 512
	body = strings.TrimSpace(body)
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}
