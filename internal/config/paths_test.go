package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CORDBRIDGE_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, "data", "cordbridge.db"), paths.Database())
	assert.Equal(t, filepath.Join(tmp, "credentials", "identity.age"), paths.Identity())
	assert.Equal(t, filepath.Join(tmp, "credentials", "gateway.token"), paths.GatewayToken())
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("CORDBRIDGE_HOME", t.TempDir())

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Credentials, paths.Logs, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"gateway.port", []string{"gateway", "port"}, false},
		{"connection.retry.policy", []string{"connection", "retry", "policy"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{"gateway.auth token", nil, true},
		{"hooks.stateChanged[0]", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValuePaths(t *testing.T) {
	root := map[string]any{
		"connection": map[string]any{"provider": "discord"},
	}

	val, ok := GetValueAtPath(root, []string{"connection", "provider"})
	require.True(t, ok)
	assert.Equal(t, "discord", val)

	SetValueAtPath(root, []string{"connection", "retry", "policy"}, "exponential")
	val, ok = GetValueAtPath(root, []string{"connection", "retry", "policy"})
	require.True(t, ok)
	assert.Equal(t, "exponential", val)

	assert.True(t, UnsetValueAtPath(root, []string{"connection", "provider"}))
	assert.False(t, UnsetValueAtPath(root, []string{"connection", "provider"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "key"}))
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	raw := map[string]any{"gateway": map[string]any{"port": 9999}}
	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)
	val, ok := GetValueAtPath(loaded, []string{"gateway", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)

	empty, err := LoadRaw(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
