// Package concat defines the audio-concatenation collaborator used by the
// export assembler to join per-chunk MP3 files into one audiobook file.
package concat

import (
	"context"
	"fmt"
)

// Concatenator joins an ordered list of audio files into a single file.
// Implementations must preserve the input order exactly.
type Concatenator interface {
	// Concatenate joins files in order and returns the combined audio.
	// outputName is the desired file name of the result (used by remote
	// backends that address files by name).
	Concatenate(ctx context.Context, files [][]byte, outputName string) ([]byte, error)
}

// ProviderError is a failure reported by the concatenation backend.
type ProviderError struct {
	// StatusCode is the HTTP status returned by the backend, or 0 for
	// transport-level failures.
	StatusCode int

	// Detail is the backend's failure description.
	Detail string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("concat provider: %s", e.Detail)
	}
	return fmt.Sprintf("concat provider: status %d: %s", e.StatusCode, e.Detail)
}
