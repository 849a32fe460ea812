package placeholder

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsSentinel(t *testing.T) {
	h, err := Validate(InvalidValue, "/a/b")
	require.Error(t, err)
	assert.Equal(t, Handle{}, h)

	var invalid *InvalidHandleError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "/a/b", invalid.Path)
	assert.Equal(t, map[string]any{"path": "/a/b"}, invalid.Data())
}

func TestValidateAcceptsHandle(t *testing.T) {
	for _, raw := range []uintptr{0, 3, 0x1a4} {
		h, err := Validate(raw, "/a/b")
		require.NoError(t, err)
		assert.Equal(t, Handle{Raw: raw, Path: "/a/b"}, h)
	}
}

func TestValidateErrKeepsCause(t *testing.T) {
	_, err := ValidateErr(InvalidValue, "/root/x.txt", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var invalid *InvalidHandleError
	require.ErrorAs(t, fmt.Errorf("open: %w", err), &invalid)
	assert.Equal(t, "/root/x.txt", invalid.Data()["path"])

	h, err := ValidateErr(7, "/root/x.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, uintptr(7), h.Raw)
}
