package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".cordbridge"

// Paths holds resolved filesystem paths for cordbridge data.
type Paths struct {
	Base        string // ~/.cordbridge
	Config      string // ~/.cordbridge/config.yaml
	Credentials string // ~/.cordbridge/credentials
	Logs        string // ~/.cordbridge/logs
	Data        string // ~/.cordbridge/data
}

// ResolvePaths computes all standard paths from the home directory.
// If CORDBRIDGE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("CORDBRIDGE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:        base,
		Config:      filepath.Join(base, "config.yaml"),
		Credentials: filepath.Join(base, "credentials"),
		Logs:        filepath.Join(base, "logs"),
		Data:        filepath.Join(base, "data"),
	}, nil
}

// Database is the credential store's SQLite file.
func (p Paths) Database() string {
	return filepath.Join(p.Data, "cordbridge.db")
}

// Identity is the age identity used to seal the stored credential.
func (p Paths) Identity() string {
	return filepath.Join(p.Credentials, "identity.age")
}

// GatewayToken is where the bridge keeps its generated gateway token.
func (p Paths) GatewayToken() string {
	return filepath.Join(p.Credentials, "gateway.token")
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Credentials, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// blockedKeys are keys that must never appear in config paths.
// ParseConfigPath splits a dot-separated config path into segments. Each
// segment must be a plain YAML key: letters, digits, '_' or '-'.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
		if strings.IndexFunc(p, invalidKeyRune) >= 0 {
			return nil, &ConfigError{Message: "config path contains invalid key: " + p}
		}
	}
	return parts, nil
}

func invalidKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		return false
	}
	return true
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
