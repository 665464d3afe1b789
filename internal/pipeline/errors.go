package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthenticationRequired surfaces a missing or expired token bundle as a
// distinct condition: the caller must rerun the OAuth flow, retrying the
// publish as-is cannot succeed.
var ErrAuthenticationRequired = errors.New("authentication required")

// ValidationError is a content or caller error found before submission.
// Never retryable, never produces a lifecycle change.
type ValidationError struct {
	Platform   string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("post failed %s validation: %s", e.Platform, strings.Join(e.Violations, "; "))
}

// AsValidationError unwraps err looking for a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// PublishError is a submission failure reported by the provider, carrying
// the retryable classification for the external scheduler to act on.
type PublishError struct {
	Platform  string
	Message   string
	Retryable bool
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %s", e.Platform, e.Message)
}
