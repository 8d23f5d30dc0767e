// Package lifecycle owns the connection session: login, bounded retry on
// disconnect, and the credential-missing flow.
package lifecycle

import (
	"time"
)

// State is a lifecycle state.
type State int

const (
	Idle State = iota
	CredentialMissing
	Authenticating
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CredentialMissing:
		return "credential_missing"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Transition describes one state change.
type Transition struct {
	From       State
	To         State
	Attempt    int
	Generation uint64
	Err        error
}

// Retry delay policies.
const (
	PolicyFixed       = "fixed"
	PolicyExponential = "exponential"
)

// Options tunes retry behaviour.
type Options struct {
	Ceiling  int
	Delay    time.Duration
	MaxDelay time.Duration
	Policy   string
}

// DefaultOptions returns the fixed-delay policy: three retries five
// seconds apart.
func DefaultOptions() Options {
	return Options{
		Ceiling: 3,
		Delay:   5 * time.Second,
		Policy:  PolicyFixed,
	}
}

// RetryDelay returns the wait before retry number attempt (1-based).
func (o Options) RetryDelay(attempt int) time.Duration {
	if o.Policy != PolicyExponential || attempt <= 1 {
		return o.Delay
	}
	maxDelay := o.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 8 * o.Delay
	}
	d := o.Delay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}
