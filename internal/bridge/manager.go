// ABOUTME: Connection manager owning the session state machine for the bridge.
// ABOUTME: Coordinates pairing, reconnect-with-delay, credential persistence, and unlink.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// reconnectDelay is the fixed delay before re-connecting after a retryable close.
const reconnectDelay = 2 * time.Second

// ErrLoggedOut is returned by Run when the network logged this identity out.
// Credentials have been wiped; a fresh pairing cycle is required.
var ErrLoggedOut = errors.New("logged out by the network, re-pairing required")

// ErrReplaced is returned by Run when another client took over the session.
var ErrReplaced = errors.New("session taken over by another client")

// NetSession is the slice of the network connection the manager drives.
type NetSession interface {
	Connect() error
	Disconnect()
	// Logout requests a network-side logout. Best-effort from the
	// manager's point of view.
	Logout(ctx context.Context) error
}

// CredentialStore persists the pairing credentials across restarts.
type CredentialStore interface {
	Paired() bool
	Save(ctx context.Context) error
	Wipe(ctx context.Context) error
}

// Manager owns the one live connection state for the process. All network
// events funnel into its run loop; message dispatch is handed off so the
// loop is never blocked by a backend call.
type Manager struct {
	session NetSession
	creds   CredentialStore
	logger  *slog.Logger

	events        chan Event
	onMessage     func(context.Context, InboundMessage)
	onPairingCode func(string)

	// RetryDelay is the reconnect delay after a retryable close. Exposed
	// for tests; defaults to reconnectDelay.
	RetryDelay time.Duration
}

// NewManager creates a connection manager over the given session and
// credential store.
func NewManager(session NetSession, creds CredentialStore, logger *slog.Logger) *Manager {
	return &Manager{
		session:    session,
		creds:      creds,
		logger:     logger,
		events:     make(chan Event, 64),
		RetryDelay: reconnectDelay,
	}
}

// OnMessage sets the handler for live inbound messages. The handler must
// not block; the dispatcher enqueues and returns.
func (m *Manager) OnMessage(fn func(context.Context, InboundMessage)) {
	m.onMessage = fn
}

// OnPairingCode sets the handler that surfaces a pairing challenge to the
// operator.
func (m *Manager) OnPairingCode(fn func(string)) {
	m.onPairingCode = fn
}

// Deliver feeds one network event into the coordinating loop.
func (m *Manager) Deliver(ev Event) {
	m.events <- ev
}

// Run connects and processes network events until the context is cancelled
// or the session ends terminally. Retryable closes schedule a reconnect
// after RetryDelay; a logout wipes credentials and returns ErrLoggedOut.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	var retryC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("shutting down, disconnecting")
			m.session.Disconnect()
			return nil

		case <-retryC:
			retryC = nil
			m.logger.Info("reconnecting")
			if err := m.connect(); err != nil {
				m.logger.Error("reconnect failed", "error", err)
				retryC = time.After(m.RetryDelay)
			}

		case ev := <-m.events:
			switch e := ev.(type) {
			case Connected:
				m.logger.Info("connection open")

			case PairingChallenge:
				m.logger.Info("pairing challenge received, waiting for the operator to link")
				if m.onPairingCode != nil {
					m.onPairingCode(e.Code)
				}

			case CredentialsRotated:
				if err := m.creds.Save(ctx); err != nil {
					// A missed persist desynchronizes local state from
					// the network's view and locks the identity out on
					// the next launch.
					return fmt.Errorf("persisting rotated credentials: %w", err)
				}
				m.logger.Debug("persisted rotated credentials")

			case Closed:
				switch {
				case e.LoggedOut:
					m.logger.Warn("logged out by the network, wiping credentials", "reason", e.Reason)
					if err := m.creds.Wipe(ctx); err != nil {
						return err
					}
					return ErrLoggedOut
				case e.Replaced:
					m.logger.Warn("session taken over elsewhere, not reconnecting", "reason", e.Reason)
					return ErrReplaced
				default:
					m.logger.Warn("connection closed, scheduling reconnect",
						"reason", e.Reason,
						"delay", m.RetryDelay,
					)
					retryC = time.After(m.RetryDelay)
				}

			case Inbound:
				if m.onMessage != nil {
					m.onMessage(ctx, e.Message)
				}
			}
		}
	}
}

// connect establishes the connection with the current credentials, entering
// pairing mode when none exist. Safe to call again after a retryable close.
func (m *Manager) connect() error {
	if m.creds.Paired() {
		m.logger.Info("connecting with stored credentials")
	} else {
		m.logger.Info("no stored credentials, entering pairing mode")
	}
	return m.session.Connect()
}

// Unlink logs out of the network and deletes the persisted credentials.
// The logout is best-effort: the operator's recovery path (re-pairing)
// works whether or not the network call lands. The local wipe is mandatory
// and its failure is propagated, since stale credentials would be reused on
// the next pairing attempt.
func (m *Manager) Unlink(ctx context.Context) error {
	if err := m.session.Logout(ctx); err != nil {
		m.logger.Warn("network logout failed, wiping local credentials anyway", "error", err)
	}
	return m.creds.Wipe(ctx)
}
