package tts

import (
	"errors"
	"fmt"
)

// ProviderError is a synthesis failure reported by the remote service. The
// Detail message is extracted from the provider's error payload when one is
// present, so it can be shown to the user as-is.
type ProviderError struct {
	// StatusCode is the HTTP status returned by the provider, or 0 for
	// transport-level failures.
	StatusCode int

	// Detail is the human-readable failure description.
	Detail string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("tts provider: %s", e.Detail)
	}
	return fmt.Sprintf("tts provider: status %d: %s", e.StatusCode, e.Detail)
}

// AsProviderError unwraps err into a [ProviderError] if one is present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
