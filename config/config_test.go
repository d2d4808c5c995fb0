package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	opts, err := Parse([]byte(`
target: token-123
files: /srv/files
temp_dir: /tmp/results
build:
  name: "1.0.3"
  result: pass
  description: nightly build
  custom:
    Commit: abc123
`))
	require.NoError(t, err)
	require.True(t, opts.Enabled())
	require.Equal(t, "token-123", opts.Target)
	require.Equal(t, "/srv/files", opts.Files)
	require.Equal(t, "/tmp/results", opts.TempDir)
	require.NotNil(t, opts.Build)
	require.Equal(t, "1.0.3", opts.Build.Name)
	require.Equal(t, "pass", opts.Build.Result)
	require.Equal(t, "nightly build", opts.Build.Description)
	require.Equal(t, map[string]any{"Commit": "abc123"}, opts.Build.Custom)
}

func TestParse_BuildWithoutNameDropped(t *testing.T) {
	opts, err := Parse([]byte("build:\n  result: fail\n"))
	require.NoError(t, err)
	require.Nil(t, opts.Build)
	require.False(t, opts.Enabled())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("target: [unterminated"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caseflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: abc\n"), 0644))

	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "abc", opts.Target)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	require.Equal(t, DefaultTempDir(), opts.TempDir)
	require.Equal(t, DefaultEndpoint, opts.Endpoint)

	opts = Options{TempDir: "/x", Endpoint: "http://localhost"}.WithDefaults()
	require.Equal(t, "/x", opts.TempDir)
	require.Equal(t, "http://localhost", opts.Endpoint)
}
