// ABOUTME: whatsmeow session adapter for the bridge.
// ABOUTME: Translates network callbacks into tagged events and implements the outbound sends.

package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

var (
	_ NetSession = (*WASession)(nil)
	_ Sender     = (*WASession)(nil)
)

// WASession adapts a whatsmeow client to the NetSession and Sender
// interfaces and feeds its event callbacks into a Manager as tagged events.
type WASession struct {
	cli     *whatsmeow.Client
	deliver func(Event)
	logger  *slog.Logger
}

// NewWASession wraps the given client. Automatic reconnection is disabled;
// the Manager owns the reconnect policy.
func NewWASession(cli *whatsmeow.Client, logger *slog.Logger) *WASession {
	cli.EnableAutoReconnect = false
	return &WASession{
		cli:    cli,
		logger: logger,
	}
}

// Attach registers the event handler, delivering tagged events to the given
// sink. Must be called before Connect.
func (s *WASession) Attach(deliver func(Event)) {
	s.deliver = deliver
	s.cli.AddEventHandler(s.handleEvent)
}

// handleEvent runs on whatsmeow's event goroutine; it only translates and
// forwards, all real work happens behind the manager's fan-in channel.
func (s *WASession) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		s.deliver(Inbound{Message: newInbound(e)})

	case *events.HistorySync:
		// Backlog replayed on reconnect. Never dispatched.
		s.logger.Debug("ignoring history sync batch")

	case *events.Connected:
		s.deliver(Connected{})

	case *events.QR:
		if len(e.Codes) > 0 {
			s.deliver(PairingChallenge{Code: e.Codes[0]})
		}

	case *events.PairSuccess:
		s.logger.Info("paired with network identity", "jid", e.ID.String())
		s.deliver(CredentialsRotated{})

	case *events.LoggedOut:
		s.deliver(Closed{LoggedOut: true, Reason: fmt.Sprintf("%v", e.Reason)})

	case *events.StreamReplaced:
		s.deliver(Closed{Replaced: true, Reason: "stream replaced"})

	case *events.Disconnected:
		s.deliver(Closed{Reason: "disconnected"})

	case *events.ConnectFailure:
		s.deliver(Closed{Reason: fmt.Sprintf("connect failure: %v", e.Reason)})

	case *events.StreamError:
		s.deliver(Closed{Reason: fmt.Sprintf("stream error: %s", e.Code)})
	}
}

// newInbound normalizes one message event.
func newInbound(evt *events.Message) InboundMessage {
	return InboundMessage{
		Chat:   evt.Info.Chat,
		Sender: evt.Info.Sender,
		ID:     evt.Info.ID,
		FromMe: evt.Info.IsFromMe,
		Group:  evt.Info.IsGroup,
		Text:   ExtractText(evt.Message),
		Raw:    evt.Message,
	}
}

// Connect opens the connection. With no stored credentials whatsmeow emits
// QR challenge events, which Attach forwards as pairing challenges.
func (s *WASession) Connect() error {
	return s.cli.Connect()
}

// Disconnect closes the connection without touching credentials.
func (s *WASession) Disconnect() {
	s.cli.Disconnect()
}

// Logout requests a network-side logout for this device.
func (s *WASession) Logout(ctx context.Context) error {
	return s.cli.Logout(ctx)
}

// SendText sends a plain text message to the chat.
func (s *WASession) SendText(ctx context.Context, chat types.JID, text string) error {
	_, err := s.cli.SendMessage(ctx, chat, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

// SendReply sends text quoting the original message.
func (s *WASession) SendReply(ctx context.Context, chat types.JID, text string, quote *InboundMessage) error {
	if quote == nil {
		return s.SendText(ctx, chat, text)
	}
	_, err := s.cli.SendMessage(ctx, chat, &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(string(quote.ID)),
				Participant:   proto.String(quote.Sender.ToNonAD().String()),
				QuotedMessage: quote.Raw,
			},
		},
	})
	return err
}

// Presence toggles the composing indicator for the chat.
func (s *WASession) Presence(chat types.JID, composing bool) error {
	state := types.ChatPresencePaused
	if composing {
		state = types.ChatPresenceComposing
	}
	return s.cli.SendChatPresence(context.Background(), chat, state, types.ChatPresenceMediaText)
}
