package strava

import (
	"fmt"
	"time"
)

// AuthError reports a credential problem: a missing or rejected authorization
// code, a revoked grant, or a failed token exchange. Retrying will not help;
// the user has to re-authorize.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("strava auth: %s: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError signals remote throttling (HTTP 429). RetryAfter carries the
// remote hint when one was supplied; whether to wait and retry is the
// caller's decision, the client never retries on its own.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("strava rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "strava rate limit exceeded"
}

// FetchError reports a malformed or otherwise unexpected API response.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("strava fetch %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("strava fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
