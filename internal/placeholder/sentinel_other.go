//go:build !windows

package placeholder

// InvalidValue is the descriptor -1 seen as an unsigned handle.
const InvalidValue = ^uintptr(0)
