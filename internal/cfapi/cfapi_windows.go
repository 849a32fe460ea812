//go:build windows

// Package cfapi is the Windows Cloud Files platform. Registration goes
// through the provider's native shim, which takes the fixed-layout command;
// lookup, unregister and placeholder handles use cldapi.dll directly.
package cfapi

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/fruitsalade/syncroot/internal/placeholder"
	"github.com/fruitsalade/syncroot/internal/syncroot"
)

const (
	cfSyncRootInfoBasic = 0
	cfOpenFileFlagNone  = 0
	eFail               = 0x80004005
)

var (
	modcldapi = windows.NewLazySystemDLL("cldapi.dll")

	procCfUnregisterSyncRoot    = modcldapi.NewProc("CfUnregisterSyncRoot")
	procCfGetSyncRootInfoByPath = modcldapi.NewProc("CfGetSyncRootInfoByPath")
	procCfOpenFileWithOplock    = modcldapi.NewProc("CfOpenFileWithOplock")
	procCfCloseHandle           = modcldapi.NewProc("CfCloseHandle")
)

// Config selects the native registration shim.
type Config struct {
	ShimLibrary string
	Logger      *zap.Logger
}

// Platform implements syncroot.Platform and placeholder.Opener on Windows.
type Platform struct {
	shim         *windows.LazyDLL
	procRegister *windows.LazyProc
	logger       *zap.Logger

	mu sync.Mutex
}

var (
	_ syncroot.Platform  = (*Platform)(nil)
	_ placeholder.Opener = (*Platform)(nil)
)

// New loads cldapi.dll and the registration shim.
func New(cfg Config) (*Platform, error) {
	if err := modcldapi.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", syncroot.ErrUnsupportedPlatform, err)
	}
	shim := windows.NewLazyDLL(cfg.ShimLibrary)
	proc := shim.NewProc("RegisterSyncRoot")
	if err := proc.Find(); err != nil {
		return nil, fmt.Errorf("cfapi: load %s: %w", cfg.ShimLibrary, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Platform{shim: shim, procRegister: proc, logger: logger}, nil
}

// Register passes the encoded command to RegisterSyncRoot(LPCWSTR providerId,
// const BYTE *command, DWORD size) and returns its HRESULT.
func (p *Platform) Register(ctx context.Context, providerID string, command []byte) (uint32, error) {
	cmd, err := syncroot.UnmarshalCommand(command)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(cmd.Registration().Directory, 0755); err != nil {
		return 0, fmt.Errorf("create sync root: %w", err)
	}

	id, err := windows.UTF16PtrFromString(providerID)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	hr, _, _ := p.procRegister.Call(
		uintptr(unsafe.Pointer(id)),
		uintptr(unsafe.Pointer(&command[0])),
		uintptr(len(command)),
	)
	p.logger.Debug("RegisterSyncRoot returned",
		zap.String("sync_root", cmd.Registration().Directory),
		zap.Uint32("hresult", uint32(hr)),
	)
	return uint32(hr), nil
}

// Unregister calls CfUnregisterSyncRoot.
func (p *Platform) Unregister(ctx context.Context, directory string) (uint32, error) {
	path, err := windows.UTF16PtrFromString(directory)
	if err != nil {
		return 0, err
	}
	hr, _, _ := procCfUnregisterSyncRoot.Call(uintptr(unsafe.Pointer(path)))
	return uint32(hr), nil
}

// Lookup reports whether directory itself, not merely a path below some
// root, is a sync root. CfGetSyncRootInfoByPath answers for any path under a
// root, so the root's file id is compared with the directory's own.
func (p *Platform) Lookup(ctx context.Context, directory string) (syncroot.SyncRootInfo, bool, error) {
	path, err := windows.UTF16PtrFromString(directory)
	if err != nil {
		return syncroot.SyncRootInfo{}, false, err
	}

	var rootFileID int64
	var returned uint32
	hr, _, _ := procCfGetSyncRootInfoByPath.Call(
		uintptr(unsafe.Pointer(path)),
		cfSyncRootInfoBasic,
		uintptr(unsafe.Pointer(&rootFileID)),
		unsafe.Sizeof(rootFileID),
		uintptr(unsafe.Pointer(&returned)),
	)
	if hr != 0 {
		return syncroot.SyncRootInfo{}, false, nil
	}

	id, err := fileID(path)
	if err != nil {
		return syncroot.SyncRootInfo{}, false, fmt.Errorf("cfapi: file id of %s: %w", directory, err)
	}
	if id != rootFileID {
		return syncroot.SyncRootInfo{}, false, nil
	}
	return syncroot.SyncRootInfo{Directory: directory}, true, nil
}

func fileID(path *uint16) (int64, error) {
	h, err := windows.CreateFile(path, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return 0, err
	}
	return int64(info.FileIndexHigh)<<32 | int64(info.FileIndexLow), nil
}

// OpenPlaceholder opens path with CfOpenFileWithOplock. The protected handle
// is checked by the placeholder guard before it is returned.
func (p *Platform) OpenPlaceholder(path string) (placeholder.Handle, error) {
	p16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return placeholder.Handle{}, err
	}
	raw := uintptr(windows.InvalidHandle)
	hr, _, _ := procCfOpenFileWithOplock.Call(
		uintptr(unsafe.Pointer(p16)),
		cfOpenFileFlagNone,
		uintptr(unsafe.Pointer(&raw)),
	)
	var osErr error
	if hr != 0 {
		osErr = &syncroot.OSError{Op: "open placeholder", Code: uint32(hr)}
		raw = uintptr(windows.InvalidHandle)
	}
	return placeholder.ValidateErr(raw, path, osErr)
}

// ClosePlaceholder releases a handle from OpenPlaceholder.
func (p *Platform) ClosePlaceholder(h placeholder.Handle) error {
	if h.Raw == placeholder.InvalidValue {
		return &placeholder.InvalidHandleError{Path: h.Path}
	}
	procCfCloseHandle.Call(h.Raw)
	return nil
}

// Close is a no-op; DLLs stay loaded for the life of the process.
func (p *Platform) Close() error {
	return nil
}
