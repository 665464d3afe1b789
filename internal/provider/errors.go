package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthorizationRequired is returned by real-mode Authenticate on
// platforms that only support the user authorization-code flow.
var ErrAuthorizationRequired = errors.New("platform requires the authorization-code flow")

// StatusError is a non-2xx response from a platform API, classified as
// retryable or terminal. 408, 429 and 5xx are transient; every other 4xx is
// a caller error that will not succeed unchanged.
type StatusError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// Retryable reports whether the failure is safe to retry with backoff.
func (e *StatusError) Retryable() bool {
	return RetryableStatus(e.StatusCode)
}

// RetryableStatus classifies an HTTP status code as transient.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500 && code <= 599
}

// AsStatusError unwraps err looking for a StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
