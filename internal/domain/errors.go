package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialMissing means no usable credential is stored; the user
	// must supply one.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrMalformedCommand marks a route payload the router ignores.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("not connected")
)

// ConnectionError wraps a failed login or connect.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DisconnectError describes a dropped session that the retry machinery
// may recover from.
type DisconnectError struct {
	Attempt int
	Err     error
}

func (e *DisconnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("disconnected (attempt %d)", e.Attempt)
	}
	return fmt.Sprintf("disconnected (attempt %d): %v", e.Attempt, e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }

// HistoryFetchError wraps a failed channel history request.
type HistoryFetchError struct {
	ChannelID string
	Err       error
}

func (e *HistoryFetchError) Error() string {
	return fmt.Sprintf("fetching history for %s: %v", e.ChannelID, e.Err)
}

func (e *HistoryFetchError) Unwrap() error { return e.Err }
