// Package bridge is the core of the relay gateway: it owns the WhatsApp
// connection lifecycle (pairing, reconnection, unlink), normalizes and
// filters inbound message events, and dispatches each qualifying message to
// the conversational backend while reporting composing presence.
//
// All network callbacks funnel into a single coordinating loop (the
// Manager) as tagged events; per-message work runs on per-chat worker
// goroutines so one slow backend call never blocks event delivery or other
// chats.
package bridge
