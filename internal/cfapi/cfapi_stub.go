//go:build !windows

// Package cfapi is the Windows Cloud Files platform. On other systems every
// entry point fails with syncroot.ErrUnsupportedPlatform.
package cfapi

import (
	"context"

	"go.uber.org/zap"

	"github.com/fruitsalade/syncroot/internal/placeholder"
	"github.com/fruitsalade/syncroot/internal/syncroot"
)

// Config selects the native registration shim.
type Config struct {
	ShimLibrary string
	Logger      *zap.Logger
}

// Platform is a stub for non-Windows platforms.
type Platform struct{}

var (
	_ syncroot.Platform  = (*Platform)(nil)
	_ placeholder.Opener = (*Platform)(nil)
)

// New always fails outside Windows.
func New(cfg Config) (*Platform, error) {
	return nil, syncroot.ErrUnsupportedPlatform
}

func (p *Platform) Register(ctx context.Context, providerID string, command []byte) (uint32, error) {
	return 0, syncroot.ErrUnsupportedPlatform
}

func (p *Platform) Unregister(ctx context.Context, directory string) (uint32, error) {
	return 0, syncroot.ErrUnsupportedPlatform
}

func (p *Platform) Lookup(ctx context.Context, directory string) (syncroot.SyncRootInfo, bool, error) {
	return syncroot.SyncRootInfo{}, false, syncroot.ErrUnsupportedPlatform
}

func (p *Platform) OpenPlaceholder(path string) (placeholder.Handle, error) {
	return placeholder.Handle{}, syncroot.ErrUnsupportedPlatform
}

func (p *Platform) ClosePlaceholder(h placeholder.Handle) error {
	return syncroot.ErrUnsupportedPlatform
}

func (p *Platform) Close() error {
	return nil
}
