package config

import (
	"fmt"
	"slices"
	"time"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

func oneOf(issues []ValidationIssue, path, got string, valid []string) []ValidationIssue {
	if got != "" && !slices.Contains(valid, got) {
		issues = append(issues, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf("must be one of %v, got %q", valid, got),
		})
	}
	return issues
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Connection validation
	conn := cfg.Connection
	issues = oneOf(issues, "connection.provider", conn.Provider, []string{"discord", "irc"})
	if conn.HistoryLimit < 1 || conn.HistoryLimit > 100 {
		issues = append(issues, ValidationIssue{
			Path:    "connection.historyLimit",
			Message: fmt.Sprintf("must be 1-100, got %d", conn.HistoryLimit),
		})
	}
	if conn.Retry.Ceiling < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "connection.retry.ceiling",
			Message: fmt.Sprintf("must be at least 1, got %d", conn.Retry.Ceiling),
		})
	}
	if conn.Retry.DelayMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "connection.retry.delayMs",
			Message: "must not be negative",
		})
	}
	issues = oneOf(issues, "connection.retry.policy", conn.Retry.Policy, []string{"fixed", "exponential"})

	if conn.Provider == "irc" {
		irc := conn.IRC
		if irc == nil {
			issues = append(issues, ValidationIssue{
				Path:    "connection.irc",
				Message: "required when provider is irc",
			})
		} else {
			if irc.Server == "" {
				issues = append(issues, ValidationIssue{Path: "connection.irc.server", Message: "server is required"})
			}
			if irc.Nick == "" {
				issues = append(issues, ValidationIssue{Path: "connection.irc.nick", Message: "nick is required"})
			}
			if irc.Port < 0 || irc.Port > 65535 {
				issues = append(issues, ValidationIssue{
					Path:    "connection.irc.port",
					Message: fmt.Sprintf("port must be 0-65535, got %d", irc.Port),
				})
			}
		}
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}
	issues = oneOf(issues, "gateway.bind", cfg.Gateway.Bind, []string{"loopback", "lan", "custom"})
	issues = oneOf(issues, "gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"token", "password"})
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	// UI validation
	if cfg.UI.Timezone != "" {
		if _, err := time.LoadLocation(cfg.UI.Timezone); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "ui.timezone",
				Message: fmt.Sprintf("unknown timezone %q", cfg.UI.Timezone),
			})
		}
	}

	// Store validation
	issues = oneOf(issues, "store.driver", cfg.Store.Driver, []string{"sqlite", "memory"})

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	issues = oneOf(issues, "logging.level", cfg.Logging.Level, validLogLevels)
	issues = oneOf(issues, "logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "compact", "json"})

	// Hooks validation
	for name, entries := range cfg.Hooks.ByEvent() {
		for i, h := range entries {
			if h.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].command", name, i),
					Message: "command is required",
				})
			}
		}
	}

	return issues
}

// ByEvent maps each configured hook list to its YAML key.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"stateChanged":    h.StateChanged,
		"serverCreated":   h.ServerCreated,
		"serverDeleted":   h.ServerDeleted,
		"messageReceived": h.MessageReceived,
		"bridgeStart":     h.BridgeStart,
		"bridgeStop":      h.BridgeStop,
	}
}
