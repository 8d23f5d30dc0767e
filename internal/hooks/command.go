package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/cordbridge/internal/config"
)

// DefaultCommandTimeout bounds a hook command without a configured timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler returns a Handler that runs command through the shell.
// The payload is written to stdin as JSON and the event name is exported
// as CORDBRIDGE_EVENT.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(os.Environ(), "CORDBRIDGE_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", command, err)
		}
		return nil
	}
}

// RegisterCommands installs a CommandHandler for every configured hook
// entry and returns how many were registered.
func RegisterCommands(m *Manager, cfg config.HooksConfig) int {
	byEvent := map[string][]config.HookEntry{
		EventStateChanged:    cfg.StateChanged,
		EventServerCreated:   cfg.ServerCreated,
		EventServerDeleted:   cfg.ServerDeleted,
		EventMessageReceived: cfg.MessageReceived,
		EventBridgeStart:     cfg.BridgeStart,
		EventBridgeStop:      cfg.BridgeStop,
	}

	n := 0
	for _, event := range AllEvents {
		for i, entry := range byEvent[event] {
			if entry.Command == "" {
				continue
			}
			timeout := time.Duration(entry.Timeout) * time.Millisecond
			m.On(event, fmt.Sprintf("command-%d", i), CommandHandler(entry.Command, timeout))
			n++
		}
	}
	return n
}
