// ABOUTME: Presence reporter toggling the composing indicator around a dispatch.
// ABOUTME: Purely cosmetic; every failure is swallowed so presence can never block a dispatch.

package bridge

import (
	"log/slog"

	"go.mau.fi/whatsmeow/types"
)

// PresenceReporter signals "composing" before a backend call and "paused"
// after it, regardless of outcome.
type PresenceReporter struct {
	session Sender
	logger  *slog.Logger
}

// NewPresenceReporter creates a reporter over the given session.
func NewPresenceReporter(session Sender, logger *slog.Logger) *PresenceReporter {
	return &PresenceReporter{session: session, logger: logger}
}

// Composing marks the gateway as typing in the chat.
func (p *PresenceReporter) Composing(chat types.JID) {
	if err := p.session.Presence(chat, true); err != nil {
		p.logger.Debug("failed to set composing presence", "chat", chat.String(), "error", err)
	}
}

// Paused clears the typing indicator in the chat.
func (p *PresenceReporter) Paused(chat types.JID) {
	if err := p.session.Presence(chat, false); err != nil {
		p.logger.Debug("failed to set paused presence", "chat", chat.String(), "error", err)
	}
}
