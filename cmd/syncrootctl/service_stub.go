//go:build !windows

package main

import (
	"fmt"

	"github.com/fruitsalade/syncroot/internal/syncroot"
)

const serviceName = "SyncRoot"

func isWindowsService() bool {
	return false
}

func runAsService([]string) error {
	return fmt.Errorf("service mode: %w", syncroot.ErrUnsupportedPlatform)
}

func installService([]string) error {
	return fmt.Errorf("service install: %w", syncroot.ErrUnsupportedPlatform)
}

func uninstallService() error {
	return fmt.Errorf("service uninstall: %w", syncroot.ErrUnsupportedPlatform)
}
