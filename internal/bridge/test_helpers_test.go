// ABOUTME: Shared fakes for bridge tests.
// ABOUTME: In-memory session, credential store, relayer, and unlinker doubles.

package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	chat   types.JID
	text   string
	quoted bool
}

type presenceChange struct {
	chat      types.JID
	composing bool
}

// fakeSession implements NetSession and Sender.
type fakeSession struct {
	mu          sync.Mutex
	connects    int
	connectErr  error
	disconnects int
	logouts     int
	logoutErr   error
	sends       []sentMessage
	sendErr     error
	presences   []presenceChange
}

func (f *fakeSession) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeSession) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeSession) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return f.logoutErr
}

func (f *fakeSession) SendText(ctx context.Context, chat types.JID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, sentMessage{chat: chat, text: text})
	return nil
}

func (f *fakeSession) SendReply(ctx context.Context, chat types.JID, text string, quote *InboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, sentMessage{chat: chat, text: text, quoted: quote != nil})
	return nil
}

func (f *fakeSession) Presence(chat types.JID, composing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presences = append(f.presences, presenceChange{chat: chat, composing: composing})
	return nil
}

func (f *fakeSession) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeSession) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.sends))
	for i, s := range f.sends {
		texts[i] = s.text
	}
	return texts
}

func (f *fakeSession) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sends...)
}

func (f *fakeSession) presenceLog() []presenceChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]presenceChange(nil), f.presences...)
}

// fakeCreds implements CredentialStore.
type fakeCreds struct {
	mu      sync.Mutex
	paired  bool
	saves   int
	wipes   int
	saveErr error
	wipeErr error
}

func (f *fakeCreds) Paired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paired
}

func (f *fakeCreds) Save(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.paired {
		f.saves++
	}
	return nil
}

func (f *fakeCreds) Wipe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wipeErr != nil {
		return f.wipeErr
	}
	if f.paired {
		f.wipes++
		f.paired = false
	}
	return nil
}

func (f *fakeCreds) wipeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wipes
}

func (f *fakeCreds) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type relayCall struct {
	chatID string
	text   string
}

// fakeRelayer implements Relayer.
type fakeRelayer struct {
	mu    sync.Mutex
	calls []relayCall
	// fn, when set, produces the reply; otherwise reply is returned.
	fn    func(chatID, text string, onWait func()) string
	reply string
}

func (f *fakeRelayer) Relay(ctx context.Context, chatID, text string, onWait func()) string {
	f.mu.Lock()
	f.calls = append(f.calls, relayCall{chatID: chatID, text: text})
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(chatID, text, onWait)
	}
	return f.reply
}

func (f *fakeRelayer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRelayer) callLog() []relayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relayCall(nil), f.calls...)
}

// fakeUnlinker implements Unlinker.
type fakeUnlinker struct {
	mu      sync.Mutex
	unlinks int
	err     error
}

func (f *fakeUnlinker) Unlink(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlinks++
	return f.err
}

func (f *fakeUnlinker) unlinkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unlinks
}

func userJID(user string) types.JID {
	return types.NewJID(user, types.DefaultUserServer)
}

func textMessage(id, chatUser, text string) InboundMessage {
	chat := userJID(chatUser)
	return InboundMessage{
		Chat:   chat,
		Sender: chat,
		ID:     types.MessageID(id),
		Text:   text,
	}
}
