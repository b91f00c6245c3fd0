package agent

import (
	"errors"
	"fmt"
	"time"
)

// UpstreamError is a structured failure reported by the agent runtime itself,
// as opposed to a transport error on the way there. The distinction matters
// to clients: an upstream failure guarantees the server never reached its own
// persistence step for the assistant message, which is what authorizes the
// client-side compensating write.
type UpstreamError struct {
	StatusCode int
	Message    string
	// RetryAfter is non-zero on rate-limit responses; the UI disables the
	// retry action until it elapses.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("agent runtime returned status %d: %s (retry after %s)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("agent runtime returned status %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the failure was a rate-limit response.
func (e *UpstreamError) RateLimited() bool {
	return e.StatusCode == 429
}

// AsUpstream extracts an UpstreamError from an error chain, if present.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
