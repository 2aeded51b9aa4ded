// ABOUTME: Message dispatcher for the bridge: filtering, command routing, per-chat queues.
// ABOUTME: Runs chats concurrently while keeping each chat's messages in arrival order.

package bridge

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types"

	"github.com/2389/wa-relay/internal/dedupe"
)

// unlinkCommand is matched on exact trimmed equality. It never reaches the
// backend.
const unlinkCommand = "!unlink"

const (
	waitNotice         = "Working on it, this is taking a moment..."
	unlinkNotice       = "Unlinking this device from WhatsApp..."
	unlinkConfirmation = "Done. This device is unlinked. Restart the gateway and scan a new code to pair again."
)

const (
	dedupeTTL     = 10 * time.Minute
	dedupeMaxSize = 4096
)

// Sender is the outbound slice of the network connection. It is shared by
// all concurrent dispatch units.
type Sender interface {
	SendText(ctx context.Context, chat types.JID, text string) error
	// SendReply sends text quoting the given original message.
	SendReply(ctx context.Context, chat types.JID, text string, quote *InboundMessage) error
	// Presence toggles the network-visible composing indicator.
	Presence(chat types.JID, composing bool) error
}

// Relayer performs the backend round trip for one message. The returned
// string is always a sendable reply, never an error.
type Relayer interface {
	Relay(ctx context.Context, chatID, text string, onWait func()) string
}

// Unlinker tears down the session credentials on command.
type Unlinker interface {
	Unlink(ctx context.Context) error
}

// Dispatcher consumes live inbound messages, filters them, and routes
// commands vs. ordinary text. Each chat gets its own FIFO queue drained by
// an on-demand worker goroutine: chats run concurrently, messages within a
// chat in arrival order.
type Dispatcher struct {
	session  Sender
	relay    Relayer
	unlinker Unlinker
	presence *PresenceReporter
	seen     *dedupe.Cache
	logger   *slog.Logger

	queues sync.Map // chat JID string -> *chatQueue
}

// NewDispatcher creates a dispatcher over the given session, relayer, and
// unlinker.
func NewDispatcher(session Sender, relay Relayer, unlinker Unlinker, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		session:  session,
		relay:    relay,
		unlinker: unlinker,
		presence: NewPresenceReporter(session, logger),
		seen:     dedupe.New(dedupeTTL, dedupeMaxSize),
		logger:   logger,
	}
}

// Close releases the dedupe cache.
func (d *Dispatcher) Close() {
	d.seen.Close()
}

type queueItem struct {
	ctx context.Context
	msg InboundMessage
}

type chatQueue struct {
	mu       sync.Mutex
	pending  []queueItem
	draining bool
}

// Dispatch filters one live inbound message and, if it qualifies, queues it
// for its chat. It never blocks the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, msg InboundMessage) {
	if msg.FromMe {
		return
	}
	if msg.Group {
		d.logger.Debug("ignoring group chat message", "chat", msg.Chat.String())
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		// Unsupported content types are expected; not reported to the user.
		d.logger.Debug("ignoring message with no extractable text", "chat", msg.Chat.String())
		return
	}

	if d.seen.Duplicate(string(msg.ID)) {
		d.logger.Debug("ignoring redelivered message", "chat", msg.Chat.String(), "id", msg.ID)
		return
	}

	msg.Text = text
	d.enqueue(ctx, msg)
}

func (d *Dispatcher) enqueue(ctx context.Context, msg InboundMessage) {
	v, _ := d.queues.LoadOrStore(msg.Chat.String(), &chatQueue{})
	q := v.(*chatQueue)

	q.mu.Lock()
	q.pending = append(q.pending, queueItem{ctx: ctx, msg: msg})
	if !q.draining {
		q.draining = true
		go d.drain(q)
	}
	q.mu.Unlock()
}

// drain handles one chat's queue until it is empty. Each dispatch completes
// before the next message for that chat is taken, so per-chat ordering holds.
func (d *Dispatcher) drain(q *chatQueue) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		d.handle(item.ctx, item.msg)
	}
}

// handle processes one qualifying message: command interception or the
// backend round trip.
func (d *Dispatcher) handle(ctx context.Context, msg InboundMessage) {
	if msg.Text == unlinkCommand {
		d.handleUnlink(ctx, msg)
		return
	}

	d.logger.Info("dispatching message",
		"chat", msg.Chat.String(),
		"length", len(msg.Text),
	)

	d.presence.Composing(msg.Chat)
	defer d.presence.Paused(msg.Chat)

	reply := d.relay.Relay(ctx, msg.Chat.String(), msg.Text, func() {
		// One-shot notice while the backend is still working. Best-effort;
		// the backend call is awaited either way.
		if err := d.session.SendReply(ctx, msg.Chat, waitNotice, &msg); err != nil {
			d.logger.Debug("failed to send wait notice", "chat", msg.Chat.String(), "error", err)
		}
	})

	if err := d.session.SendText(ctx, msg.Chat, reply); err != nil {
		// The connection may have dropped while the backend was working;
		// the reply is dropped, not retried.
		d.logger.Error("failed to send reply", "chat", msg.Chat.String(), "error", err)
	}
}

// handleUnlink runs the unlink command: pre-notice, credential teardown,
// confirmation. Send failures are swallowed; once Unlink has run the
// command has taken effect locally regardless.
func (d *Dispatcher) handleUnlink(ctx context.Context, msg InboundMessage) {
	d.logger.Info("unlink command received", "chat", msg.Chat.String())

	if err := d.session.SendText(ctx, msg.Chat, unlinkNotice); err != nil {
		d.logger.Debug("failed to send unlink notice", "error", err)
	}

	if err := d.unlinker.Unlink(ctx); err != nil {
		d.logger.Error("unlink failed", "error", err)
		if serr := d.session.SendText(ctx, msg.Chat, "Error: could not unlink: "+err.Error()); serr != nil {
			d.logger.Debug("failed to send unlink error", "error", serr)
		}
		return
	}

	if err := d.session.SendText(ctx, msg.Chat, unlinkConfirmation); err != nil {
		d.logger.Debug("failed to send unlink confirmation", "error", err)
	}
}
