package syncroot

import (
	"context"
	"errors"
	"time"
)

// HRESULT codes the registrar interprets. Everything else non-zero is
// reported as an OSError.
const (
	CodeSuccess          uint32 = 0x00000000
	CodeAlreadyExists    uint32 = 0x800700B7 // ERROR_ALREADY_EXISTS
	CodeNotFound         uint32 = 0x80070490 // ERROR_NOT_FOUND
	CodeSharingViolation uint32 = 0x80070020
	CodeLockViolation    uint32 = 0x80070021
	CodeBusy             uint32 = 0x800700AA
)

// SyncRootInfo is what the platform knows about a registered root. Fields
// the platform cannot report are left empty.
type SyncRootInfo struct {
	Directory    string
	Name         string
	AccountID    string
	ProviderID   string
	Policy       PopulationPolicy
	RegisteredAt time.Time
}

// Platform is the OS file-virtualization subsystem. Registrations live in
// the platform, never in this process.
type Platform interface {
	// Register hands the encoded command to the OS registration entry point
	// and returns its HRESULT. A non-nil error means the call could not be made.
	Register(ctx context.Context, providerID string, command []byte) (uint32, error)

	// Unregister removes the sync root at directory.
	Unregister(ctx context.Context, directory string) (uint32, error)

	// Lookup reports whether directory is a registered sync root.
	Lookup(ctx context.Context, directory string) (SyncRootInfo, bool, error)
}

var transientCodes = map[uint32]bool{
	CodeSharingViolation: true,
	CodeLockViolation:    true,
	CodeBusy:             true,
}

// IsTransient reports whether err is an OS failure a caller may reasonably
// retry. The registrar itself never retries.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransitionInProgress) {
		return true
	}
	var osErr *OSError
	if errors.As(err, &osErr) {
		return transientCodes[osErr.Code]
	}
	return false
}
