package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
log_level: debug
server:
  addr: ":9090"
destination:
  account_name: new-account
provider:
  kind: mediacdn
  base_url: https://api.mediacdn.example
retired_accounts:
  - account_name: old-account
    host: res.oldcdn.example
checkpoint:
  backend: sqlite
  path: /var/lib/migrate/checkpoint.db
migration:
  flush_every: 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	assert.Equal(t, 5, cfg.Migration.FlushEvery)
	// Defaults survive for keys the file does not set.
	assert.Equal(t, 20, cfg.Migration.ErrorRingSize)
	assert.Equal(t, 120, cfg.Migration.DownloadTimeoutSeconds)
}

func TestSecretsComeFromEnvironmentOnly(t *testing.T) {
	t.Setenv(EnvDestAPIKey, "1234567890abcdef")
	t.Setenv(EnvDestAPISecret, "supersecretvalue")
	t.Setenv(EnvDestAccount, "env-account")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	creds := cfg.Credentials()
	assert.Equal(t, "env-account", creds.AccountName)
	assert.Equal(t, "1234567890abcdef", creds.APIKey)
	assert.Equal(t, "supersecretvalue", creds.APISecret)

	assert.NotContains(t, cfg.Redacted(), "supersecretvalue")
	assert.NotContains(t, cfg.Redacted(), "1234567890abcdef")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "provider:\n  kind: ftp\n"},
		{"mediacdn without base url", "provider:\n  kind: mediacdn\n  base_url: \"\"\n"},
		{"unknown checkpoint backend", "provider:\n  kind: s3compat\ncheckpoint:\n  backend: redis\n  path: x\n"},
		{"retired account missing host", "provider:\n  kind: s3compat\nretired_accounts:\n  - account_name: a\n"},
		{"zero flush cadence", "provider:\n  kind: s3compat\nmigration:\n  flush_every: 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", Mask(""))
	assert.Equal(t, "***", Mask("short"))
	assert.Equal(t, "1234***cdef", Mask("1234567890abcdef"))
}
