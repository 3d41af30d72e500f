package providers

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// ErrorKind_Timeout: the request exceeded the provider's configured timeout.
	ErrorKind_Timeout ErrorKind = "timeout"
	// ErrorKind_RateLimited: the vendor signaled throttling; callers back off.
	ErrorKind_RateLimited ErrorKind = "rate_limited"
	// ErrorKind_NotFound: the queried range has no data at the provider. Not an
	// error to callers; Throttled maps it to an empty page.
	ErrorKind_NotFound ErrorKind = "not_found"
	// ErrorKind_Upstream: catch-all for everything else the vendor returned.
	ErrorKind_Upstream ErrorKind = "upstream"
)

type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewTimeoutError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorKind_Timeout, Err: err}
}

func NewRateLimitError(provider string, statusCode int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorKind_RateLimited, StatusCode: statusCode, Err: err}
}

func NewNotFoundError(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorKind_NotFound}
}

func NewUpstreamError(provider string, statusCode int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorKind_Upstream, StatusCode: statusCode, Err: err}
}

func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// IsRetryable reports whether the failure is worth retrying under the provider
// retry policy. Only timeouts and throttling qualify; malformed responses and
// missing data never do.
func IsRetryable(err error) bool {
	pe, ok := AsProviderError(err)
	if !ok {
		return false
	}
	return pe.Kind == ErrorKind_Timeout || pe.Kind == ErrorKind_RateLimited
}
