package project

import (
	"errors"
	"fmt"
	"strings"
)

// MaxProjectNameLen bounds project names, matching the editor's input limit.
const MaxProjectNameLen = 100

// Validate checks that all settings fields are inside their allowed ranges:
// stability, similarity, and style in [0, 100]; speed in [0.5, 2.0]. It
// returns a joined error listing every violation wrapped in
// [ErrInvalidSettings].
func (s VoiceSettings) Validate() error {
	var errs []error
	if s.Stability < 0 || s.Stability > 100 {
		errs = append(errs, fmt.Errorf("stability %.1f is out of range [0, 100]", s.Stability))
	}
	if s.Similarity < 0 || s.Similarity > 100 {
		errs = append(errs, fmt.Errorf("similarity %.1f is out of range [0, 100]", s.Similarity))
	}
	if s.Style < 0 || s.Style > 100 {
		errs = append(errs, fmt.Errorf("style %.1f is out of range [0, 100]", s.Style))
	}
	if s.Speed < 0.5 || s.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("speed %.2f is out of range [0.5, 2.0]", s.Speed))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

// ValidateProjectName checks that a project name is non-blank and within the
// length limit. Violations are wrapped in [ErrInvalidName].
func ValidateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: project name must not be empty", ErrInvalidName)
	}
	if len(name) > MaxProjectNameLen {
		return fmt.Errorf("%w: project name exceeds %d characters", ErrInvalidName, MaxProjectNameLen)
	}
	return nil
}
