//go:build windows

package placeholder

import "golang.org/x/sys/windows"

// InvalidValue is INVALID_HANDLE_VALUE.
const InvalidValue = uintptr(windows.InvalidHandle)
