// Package placeholder validates native handles the OS returns for
// virtualized files.
package placeholder

import (
	"fmt"

	"github.com/fruitsalade/syncroot/internal/metrics"
)

// Handle is a raw OS handle for a placeholder together with the path it
// was opened from. A Handle never holds the invalid sentinel.
type Handle struct {
	Raw  uintptr
	Path string
}

// InvalidHandleError reports that the OS returned the invalid-handle
// sentinel for Path. Err is the OS error, if the caller had one.
type InvalidHandleError struct {
	Path string
	Err  error
}

func (e *InvalidHandleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("placeholder: invalid handle for %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("placeholder: invalid handle for %s", e.Path)
}

func (e *InvalidHandleError) Unwrap() error {
	return e.Err
}

// Data exposes the failure as structured fields.
func (e *InvalidHandleError) Data() map[string]any {
	return map[string]any{"path": e.Path}
}

// Validate wraps raw in a Handle, or fails with *InvalidHandleError when raw
// is the platform's invalid sentinel.
func Validate(raw uintptr, path string) (Handle, error) {
	return validate(raw, path, nil)
}

// ValidateErr is Validate for calls that also return an OS error. The error
// is attached to the failure; a valid handle is accepted regardless.
func ValidateErr(raw uintptr, path string, osErr error) (Handle, error) {
	return validate(raw, path, osErr)
}

func validate(raw uintptr, path string, osErr error) (Handle, error) {
	if raw == InvalidValue {
		metrics.RecordPlaceholderHandle(false)
		return Handle{}, &InvalidHandleError{Path: path, Err: osErr}
	}
	metrics.RecordPlaceholderHandle(true)
	return Handle{Raw: raw, Path: path}, nil
}

// Opener opens placeholders through the platform and routes the resulting
// handle through Validate.
type Opener interface {
	OpenPlaceholder(path string) (Handle, error)
	ClosePlaceholder(h Handle) error
}
