package fetch

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks upstream bodies that could not be decoded.
var ErrMalformedResponse = errors.New("malformed upstream response")

// RateLimitedError is returned when the retry budget is exhausted against
// upstream throttling. It is a per-unit failure: the caller drops the unit
// and continues the run.
type RateLimitedError struct {
	URL      string
	Attempts int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %s", e.Attempts, e.URL)
}

// UpstreamError is any non-throttle HTTP failure. Never retried.
type UpstreamError struct {
	URL    string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.URL)
}

// IsRateLimited reports whether err is a retry-budget exhaustion.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}
