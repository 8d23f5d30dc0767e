package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/eventloop"
	"github.com/soyeahso/cordbridge/internal/hooks"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/remote"
)

// CredentialStore persists the single stored credential. Load returns ""
// and no error when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
}

// Session is one login identity bound to one client. It is replaced
// wholesale on re-authentication.
type Session struct {
	Credential string
	Client     remote.Client
	Generation uint64

	retries int
}

// Retries returns the consecutive disconnect count.
func (s *Session) Retries() int { return s.retries }

// Manager runs the lifecycle state machine. Start, SubmitCredential,
// Reauthenticate and Shutdown must be called on the executor's goroutine;
// State, Client and Retries may be called from anywhere.
type Manager struct {
	ctx    context.Context
	exec   eventloop.Executor
	store  CredentialStore
	dialer remote.Dialer
	hooks  *hooks.Manager
	opts   Options
	log    *logging.Logger

	mu      sync.RWMutex
	state   State
	session *Session
	gen     uint64
	lastErr error

	transitions []func(Transition)
	events      []func(remote.Event)
}

// Config bundles a Manager's collaborators.
type Config struct {
	Exec    eventloop.Executor
	Store   CredentialStore
	Dialer  remote.Dialer
	Hooks   *hooks.Manager
	Options Options
	Logger  *logging.Logger
}

// New creates a manager in the Idle state. ctx bounds every blocking
// call the manager makes.
func New(ctx context.Context, cfg Config) *Manager {
	opts := cfg.Options
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultOptions().Ceiling
	}
	return &Manager{
		ctx:    ctx,
		exec:   cfg.Exec,
		store:  cfg.Store,
		dialer: cfg.Dialer,
		hooks:  cfg.Hooks,
		opts:   opts,
		log:    cfg.Logger.Sub("lifecycle"),
	}
}

// OnTransition registers fn to run after every state change.
func (m *Manager) OnTransition(fn func(Transition)) {
	m.transitions = append(m.transitions, fn)
}

// OnEvent registers fn to receive events from the current session.
// Events from replaced sessions are never delivered.
func (m *Manager) OnEvent(fn func(remote.Event)) {
	m.events = append(m.events, fn)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Client returns the live session's client, or nil.
func (m *Manager) Client() remote.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	return m.session.Client
}

// Retries returns the current session's consecutive disconnect count.
func (m *Manager) Retries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return 0
	}
	return m.session.retries
}

// LastError returns the most recent login or disconnect error.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Start reads the stored credential and either logs in or asks for one.
func (m *Manager) Start() {
	var (
		credential string
		err        error
	)
	m.exec.Go(func() {
		credential, err = m.store.Load(m.ctx)
	}, func() {
		if err != nil {
			m.log.Error().Err(err).Msg("loading credential")
			m.enter(CredentialMissing, fmt.Errorf("%w: %v", domain.ErrCredentialMissing, err))
			return
		}
		if credential == "" {
			m.log.Info().Msg("no stored credential")
			m.enter(CredentialMissing, domain.ErrCredentialMissing)
			return
		}
		m.begin(credential)
	})
}

// SubmitCredential stores a new credential and logs in with it,
// replacing any existing session. A blank credential is rejected.
func (m *Manager) SubmitCredential(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.ErrCredentialMissing
	}

	var err error
	m.exec.Go(func() {
		err = m.store.Save(m.ctx, credential)
	}, func() {
		if err != nil {
			m.log.Error().Err(err).Msg("saving credential, continuing with login")
		}
		m.begin(credential)
	})
	return nil
}

// Reauthenticate drops the session and asks for a fresh credential.
func (m *Manager) Reauthenticate() {
	m.log.Info().Msg("re-authentication requested")
	m.destroySession()
	m.enter(CredentialMissing, nil)
}

// Shutdown drops the session and returns to Idle.
func (m *Manager) Shutdown() {
	m.destroySession()
	m.enter(Idle, nil)
}

func (m *Manager) begin(credential string) {
	m.destroySession()

	m.mu.Lock()
	m.gen++
	sess := &Session{Credential: credential, Generation: m.gen}
	m.session = sess
	m.mu.Unlock()

	sess.Client = m.dialer.Dial(m.exec, func(ev remote.Event) { m.handle(sess, ev) })
	m.enter(Authenticating, nil)
	m.login(sess, false)
}

func (m *Manager) destroySession() {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.gen++
	m.mu.Unlock()

	if sess == nil || sess.Client == nil {
		return
	}
	client := sess.Client
	m.exec.Go(func() {
		if err := client.Close(); err != nil {
			m.log.Warn().Err(err).Uint64("generation", sess.Generation).Msg("closing session")
		}
	}, nil)
}

func (m *Manager) current(sess *Session) bool {
	return sess != nil && m.session == sess
}

func (m *Manager) login(sess *Session, retry bool) {
	var err error
	m.exec.Go(func() {
		err = sess.Client.Login(m.ctx, sess.Credential)
	}, func() {
		if !m.current(sess) {
			m.log.Debug().Uint64("generation", sess.Generation).Msg("login result for replaced session ignored")
			return
		}
		if m.State() != Authenticating {
			return
		}
		if err != nil {
			m.loginFailed(sess, retry, err)
			return
		}
		m.mu.Lock()
		sess.retries = 0
		m.lastErr = nil
		m.mu.Unlock()
		m.enter(Connected, nil)
	})
}

func (m *Manager) loginFailed(sess *Session, retry bool, err error) {
	connErr := &domain.ConnectionError{Op: "login", Err: err}
	m.mu.Lock()
	m.lastErr = connErr
	m.mu.Unlock()

	if retry {
		m.disconnected(sess, connErr)
		return
	}
	m.log.Error().Err(connErr).Msg("login failed, waiting for a new credential")
}

func (m *Manager) handle(sess *Session, ev remote.Event) {
	if !m.current(sess) {
		m.log.Trace().Str("event", remote.EventName(ev)).Uint64("generation", sess.Generation).Msg("stale session event dropped")
		return
	}

	switch e := ev.(type) {
	case remote.Disconnected:
		switch m.State() {
		case Connected:
			m.disconnected(sess, e.Err)
		case Authenticating:
			if sess.retries > 0 {
				m.disconnected(sess, e.Err)
			}
		}
	case remote.LoginError:
		if m.State() == Authenticating {
			m.loginFailed(sess, sess.retries > 0, e.Err)
		}
	}

	for _, fn := range m.events {
		fn(ev)
	}
}

func (m *Manager) disconnected(sess *Session, cause error) {
	if sess.retries >= m.opts.Ceiling {
		m.log.Warn().Int("retries", sess.retries).Msg("retry ceiling reached, credential required")
		m.destroySession()
		m.enter(CredentialMissing, &domain.DisconnectError{Attempt: sess.retries + 1, Err: cause})
		return
	}

	m.mu.Lock()
	sess.retries++
	attempt := sess.retries
	m.lastErr = &domain.DisconnectError{Attempt: attempt, Err: cause}
	m.mu.Unlock()

	delay := m.opts.RetryDelay(attempt)
	m.log.Warn().Err(cause).Int("attempt", attempt).Dur("delay", delay).Msg("disconnected, scheduling retry")
	m.enter(Reconnecting, m.LastError())

	m.exec.AfterFunc(delay, func() {
		if !m.current(sess) || m.State() != Reconnecting || sess.retries != attempt {
			m.log.Debug().Int("attempt", attempt).Msg("stale retry dropped")
			return
		}
		m.enter(Authenticating, nil)
		m.login(sess, true)
	})
}

func (m *Manager) enter(to State, cause error) {
	m.mu.Lock()
	from := m.state
	m.state = to
	t := Transition{From: from, To: to, Err: cause}
	if m.session != nil {
		t.Attempt = m.session.retries
		t.Generation = m.session.Generation
	}
	m.mu.Unlock()

	if from == to && cause == nil {
		return
	}

	ev := m.log.Info()
	if cause != nil && !errors.Is(cause, domain.ErrCredentialMissing) {
		ev = m.log.Warn().Err(cause)
	}
	ev.Str("from", from.String()).Str("to", to.String()).Int("attempt", t.Attempt).Msg("state changed")

	for _, fn := range m.transitions {
		fn(t)
	}

	data := map[string]any{
		"from":    from.String(),
		"to":      to.String(),
		"attempt": t.Attempt,
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	m.hooks.EmitAsync(m.ctx, hooks.EventStateChanged, data)
}
