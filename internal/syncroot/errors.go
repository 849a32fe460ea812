package syncroot

import (
	"errors"
	"fmt"
)

// Validation errors. Callers fix their input and try again.
var (
	ErrMissingProviderID = errors.New("syncroot: provider id is required")
)

// Registration errors.
var (
	ErrAlreadyRegistered    = errors.New("syncroot: directory is already a registered sync root")
	ErrNotRegistered        = errors.New("syncroot: directory is not a registered sync root")
	ErrTransitionInProgress = errors.New("syncroot: registration change already in progress for directory")
	ErrUnsupportedPlatform  = errors.New("syncroot: cloud files platform is not available on this system")
)

// FieldTooLongError reports a string that does not fit its fixed slot,
// terminator included.
type FieldTooLongError struct {
	Field     string
	MaxLength int // longest accepted value in bytes, terminator excluded
	Length    int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("syncroot: field %s is %d bytes, max %d", e.Field, e.Length, e.MaxLength)
}

// InvalidFieldError reports a field whose content cannot be encoded or registered.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("syncroot: field %s is invalid: %s", e.Field, e.Reason)
}

// OSError carries a non-success return code from the operating system.
type OSError struct {
	Op   string
	Code uint32
}

func (e *OSError) Error() string {
	return fmt.Sprintf("syncroot: %s failed: HRESULT 0x%08x", e.Op, e.Code)
}

// AlreadyRegisteredError is returned when the directory already is a sync root.
// AccountID is empty when the platform does not report the owning account.
type AlreadyRegisteredError struct {
	Directory string
	AccountID string
}

func (e *AlreadyRegisteredError) Error() string {
	if e.AccountID == "" {
		return fmt.Sprintf("syncroot: %s is already a registered sync root", e.Directory)
	}
	return fmt.Sprintf("syncroot: %s is already a registered sync root for account %s", e.Directory, e.AccountID)
}

func (e *AlreadyRegisteredError) Is(target error) bool {
	return target == ErrAlreadyRegistered
}

// IsValidation reports whether err belongs to the validation class.
func IsValidation(err error) bool {
	if errors.Is(err, ErrMissingProviderID) {
		return true
	}
	var tooLong *FieldTooLongError
	if errors.As(err, &tooLong) {
		return true
	}
	var invalid *InvalidFieldError
	return errors.As(err, &invalid)
}
