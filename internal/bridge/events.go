// ABOUTME: Tagged network events and the normalized inbound message for the bridge.
// ABOUTME: Includes the payload-shape priority order for extracting message text.

package bridge

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// Event is one tagged network event fed into the Manager's coordinating
// loop. Connection updates, credential updates, and messages all arrive on
// the same fan-in channel so a single goroutine owns the connection state.
type Event interface {
	isEvent()
}

// Connected signals the connection reached the open state.
type Connected struct{}

// PairingChallenge carries a linking code the operator must scan to pair
// this device. It is a side channel for out-of-band display and never
// reaches the dispatcher.
type PairingChallenge struct {
	Code string
}

// CredentialsRotated signals the network issued updated authentication
// material that must be persisted immediately.
type CredentialsRotated struct{}

// Closed signals the connection dropped. Exactly one of LoggedOut and
// Replaced may be set; otherwise the close is retryable.
type Closed struct {
	// LoggedOut means the identity was explicitly logged out. Terminal:
	// credentials must be wiped and a fresh pairing cycle is required.
	LoggedOut bool
	// Replaced means another client took over this session. Terminal, but
	// the credentials stay valid for whoever holds them now.
	Replaced bool
	Reason   string
}

// Inbound carries one live inbound message. Backlog batches replayed on
// reconnect are filtered out before this point.
type Inbound struct {
	Message InboundMessage
}

func (Connected) isEvent()          {}
func (PairingChallenge) isEvent()   {}
func (CredentialsRotated) isEvent() {}
func (Closed) isEvent()             {}
func (Inbound) isEvent()            {}

// InboundMessage is the normalized point-in-time view of one message event.
// It is consumed once by the dispatcher and never persisted.
type InboundMessage struct {
	Chat   types.JID
	Sender types.JID
	ID     types.MessageID
	FromMe bool
	Group  bool
	// Text is the best-effort extracted text; empty means the payload had
	// no supported text shape.
	Text string
	// Raw is kept so replies can quote the original message.
	Raw *waE2E.Message
}

// ExtractText pulls the message text out of the possible payload shapes.
// Priority order: plain body, extended/quoted body, image caption, video
// caption, then the payload nested in an ephemeral wrapper. First non-empty
// match wins; an empty result means the content type is unsupported, which
// is expected and not an error.
func ExtractText(msg *waE2E.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage().GetText() != "":
		return msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage().GetCaption() != "":
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage().GetCaption() != "":
		return msg.GetVideoMessage().GetCaption()
	case msg.GetEphemeralMessage().GetMessage() != nil:
		return ExtractText(msg.GetEphemeralMessage().GetMessage())
	}
	return ""
}
