package emulated

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/syncroot/internal/placeholder"
	"github.com/fruitsalade/syncroot/internal/syncroot"
)

func openTestPlatform(t *testing.T) (*Platform, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "roots.db")
	p, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, path
}

var opts = syncroot.ProviderOptions{ProviderID: "com.example.seki"}

func TestEndToEndSeki(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX absolute path")
	}
	p, _ := openTestPlatform(t)
	r := syncroot.NewRegistrar(p)
	ctx := context.Background()

	reg := syncroot.Registration{
		Name:      "Seki",
		AccountID: "acct-1",
		Directory: "/home/u/SyncRoot",
		Policy:    syncroot.PolicyOnDemand,
	}

	cmd, err := syncroot.BuildCommand(reg.Name, reg.AccountID, reg.Directory, reg.Policy)
	require.NoError(t, err)
	wire, err := cmd.MarshalBinary()
	require.NoError(t, err)
	decoded, err := syncroot.UnmarshalCommand(wire)
	require.NoError(t, err)
	assert.Equal(t, reg, decoded.Registration())
	assert.Equal(t, []byte{0, 0, 0, 0}, wire[syncroot.CommandSize-4:])

	require.NoError(t, r.Register(ctx, opts, reg))

	info, ok, err := p.Lookup(ctx, reg.Directory)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Seki", info.Name)
	assert.Equal(t, "acct-1", info.AccountID)
	assert.Equal(t, "com.example.seki", info.ProviderID)
	assert.Equal(t, syncroot.PolicyOnDemand, info.Policy)
	assert.False(t, info.RegisteredAt.IsZero())

	err = r.Register(ctx, opts, reg)
	require.ErrorIs(t, err, syncroot.ErrAlreadyRegistered)
	var already *syncroot.AlreadyRegisteredError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "acct-1", already.AccountID)
}

func TestRegistrationsOutliveProcess(t *testing.T) {
	p, path := openTestPlatform(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "Root")

	require.NoError(t, syncroot.NewRegistrar(p).Register(ctx, opts,
		syncroot.Registration{Name: "n", AccountID: "a", Directory: dir, Policy: syncroot.PolicyFull}))
	require.NoError(t, p.Close())

	reopened, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	r := syncroot.NewRegistrar(reopened)
	state, err := r.State(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, syncroot.StateRegistered, state)

	require.NoError(t, r.Unregister(ctx, dir))
	state, err = r.State(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, syncroot.StateUnregistered, state)
}

func TestRegisterCodes(t *testing.T) {
	p, _ := openTestPlatform(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "Root")

	cmd, err := syncroot.BuildCommand("n", "a", dir, syncroot.PolicyFull)
	require.NoError(t, err)
	wire, err := cmd.MarshalBinary()
	require.NoError(t, err)

	code, err := p.Register(ctx, "prov", wire)
	require.NoError(t, err)
	assert.Equal(t, syncroot.CodeSuccess, code)

	// A different account on the same directory conflicts.
	other, err := syncroot.BuildCommand("n", "b", dir, syncroot.PolicyFull)
	require.NoError(t, err)
	otherWire, err := other.MarshalBinary()
	require.NoError(t, err)
	code, err = p.Register(ctx, "prov", otherWire)
	require.NoError(t, err)
	assert.Equal(t, syncroot.CodeAlreadyExists, code)

	code, err = p.Register(ctx, "prov", wire[:10])
	require.NoError(t, err)
	assert.Equal(t, codeInvalidArg, code)

	code, err = p.Unregister(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, syncroot.CodeSuccess, code)
	code, err = p.Unregister(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, syncroot.CodeNotFound, code)
}

// Two registrars sharing one store model two processes racing on a key.
func TestConcurrentRegistrarsOneWinner(t *testing.T) {
	p, _ := openTestPlatform(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "Root")
	reg := syncroot.Registration{Name: "n", AccountID: "a", Directory: dir}

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = syncroot.NewRegistrar(p).Register(ctx, opts, reg)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, syncroot.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, wins)
}

func TestList(t *testing.T) {
	p, _ := openTestPlatform(t)
	ctx := context.Background()
	base := t.TempDir()
	r := syncroot.NewRegistrar(p)

	for _, reg := range []syncroot.Registration{
		{Name: "one", AccountID: "a", Directory: filepath.Join(base, "one")},
		{Name: "two", AccountID: "a", Directory: filepath.Join(base, "two")},
		{Name: "three", AccountID: "b", Directory: filepath.Join(base, "three")},
	} {
		require.NoError(t, r.Register(ctx, opts, reg))
	}

	all, err := p.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := p.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, "one", forA[0].Name)
	assert.Equal(t, "two", forA[1].Name)
}

func TestOpenPlaceholder(t *testing.T) {
	p, _ := openTestPlatform(t)
	ctx := context.Background()
	root := t.TempDir()
	file := filepath.Join(root, "doc.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	// Not under a root yet.
	_, err := p.OpenPlaceholder(file)
	var invalid *placeholder.InvalidHandleError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, file, invalid.Data()["path"])
	assert.ErrorIs(t, err, syncroot.ErrNotRegistered)

	require.NoError(t, syncroot.NewRegistrar(p).Register(ctx, opts,
		syncroot.Registration{Name: "n", AccountID: "a", Directory: root}))

	h, err := p.OpenPlaceholder(file)
	require.NoError(t, err)
	assert.Equal(t, file, h.Path)
	assert.NotEqual(t, placeholder.InvalidValue, h.Raw)
	require.NoError(t, p.ClosePlaceholder(h))
	assert.Error(t, p.ClosePlaceholder(h), "double close must fail")

	missing := filepath.Join(root, "missing.txt")
	_, err = p.OpenPlaceholder(missing)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, missing, invalid.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// The root directory itself is not a placeholder.
	_, err = p.OpenPlaceholder(root)
	require.ErrorAs(t, err, &invalid)
}
