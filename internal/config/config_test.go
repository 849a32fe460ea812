package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/syncroot/internal/syncroot"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
provider_id = "com.example.seki"
platform = "emulated"
state_path = "/var/lib/syncroot/roots.db"
log_level = "debug"
metrics_addr = ":9464"

[retry]
max_attempts = 5
initial_wait = "250ms"
max_wait = "2s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "com.example.seki", cfg.ProviderID)
	assert.Equal(t, PlatformEmulated, cfg.ResolvedPlatform())
	assert.Equal(t, "/var/lib/syncroot/roots.db", cfg.StatePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, ":9464", cfg.MetricsAddr)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialWait.Duration)
	assert.Equal(t, 2*time.Second, cfg.Retry.MaxWait.Duration)
}

func TestLoadMissingProviderID(t *testing.T) {
	t.Setenv("SYNCROOT_PROVIDER_ID", "")
	_, err := Load(writeConfig(t, `platform = "emulated"`))
	require.ErrorIs(t, err, syncroot.ErrMissingProviderID)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, `
provider_id = "p"
provder = "typo"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provder")
}

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("SYNCROOT_PROVIDER_ID", "env-provider")
	t.Setenv("SYNCROOT_PLATFORM", "emulated")
	t.Setenv("SYNCROOT_RETRY_MAX_ATTEMPTS", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "env-provider", cfg.ProviderID)
	assert.Equal(t, PlatformEmulated, cfg.Platform)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "SyncRootShim.dll", cfg.ShimLibrary)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SYNCROOT_PROVIDER_ID", "from-env")
	cfg, err := Load(writeConfig(t, `provider_id = "from-file"`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ProviderID)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ProviderID = "p"
	require.NoError(t, cfg.Validate())

	cfg.Platform = "fuse"
	assert.Error(t, cfg.Validate())

	cfg.Platform = PlatformEmulated
	cfg.StatePath = ""
	assert.Error(t, cfg.Validate())

	cfg.StatePath = "x.db"
	cfg.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestResolvedPlatform(t *testing.T) {
	cfg := Default()
	want := PlatformEmulated
	if runtime.GOOS == "windows" {
		want = PlatformCfAPI
	}
	assert.Equal(t, want, cfg.ResolvedPlatform())

	cfg.Platform = PlatformCfAPI
	assert.Equal(t, PlatformCfAPI, cfg.ResolvedPlatform())
}
