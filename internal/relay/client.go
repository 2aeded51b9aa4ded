// ABOUTME: Backend chat API client for wa-relay
// ABOUTME: Relays one message to the backend, racing the call against a one-shot ack timer

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// backendTimeout bounds a single backend round trip.
	backendTimeout = 60 * time.Second

	// ackDelay is how long a call may run before the one-time wait notice.
	ackDelay = 1500 * time.Millisecond

	// maxErrorReplyLen caps user-visible diagnostic replies so a failure
	// cannot flood the chat.
	maxErrorReplyLen = 500

	// fallbackReply is returned when the backend succeeds but sends no
	// usable reply field.
	fallbackReply = "could not process that"
)

// chatRequest is the request body for POST /v1/chat.
type chatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Fast      bool   `json:"fast,omitempty"`
}

// chatResponse is the success body from the backend.
type chatResponse struct {
	Reply string `json:"reply"`
}

// errorBody covers the error shapes the backend may return.
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Client relays single messages to the conversational backend.
type Client struct {
	baseURL string
	client  *http.Client
	fast    bool
	logger  *slog.Logger

	// AckDelay is exposed for tests; defaults to ackDelay.
	AckDelay time.Duration
}

// NewClient creates a backend relay client. fast sets the latency hint on
// every request.
func NewClient(baseURL string, fast bool, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: backendTimeout},
		fast:     fast,
		logger:   logger,
		AckDelay: ackDelay,
	}
}

type result struct {
	reply string
	err   error
}

// Relay sends one message to the backend and returns the reply text.
// It never returns an error: backend failures are converted into a bounded
// user-visible diagnostic string so the chat always gets an answer.
//
// If the call has not completed when the ack timer fires, onWait is invoked
// exactly once and the call is then awaited to completion; the timer only
// gates the notice, it never abandons the call.
func (c *Client) Relay(ctx context.Context, chatID, text string, onWait func()) string {
	reqID := uuid.New().String()
	start := time.Now()

	done := make(chan result, 1)
	go func() {
		done <- c.call(ctx, chatID, text)
	}()

	timer := time.NewTimer(c.AckDelay)
	defer timer.Stop()

	var res result
	select {
	case res = <-done:
	case <-timer.C:
		c.logger.Debug("backend call running long, sending wait notice",
			"request_id", reqID,
			"chat", chatID,
		)
		if onWait != nil {
			onWait()
		}
		res = <-done
	}

	elapsed := time.Since(start)

	if res.err != nil {
		c.logger.Error("backend call failed",
			"request_id", reqID,
			"chat", chatID,
			"elapsed", elapsed,
			"error", res.err,
		)
		return errorReply(res.err)
	}

	if res.reply == "" {
		c.logger.Warn("backend returned no reply",
			"request_id", reqID,
			"chat", chatID,
		)
		return fallbackReply
	}

	c.logger.Info("relayed message",
		"request_id", reqID,
		"chat", chatID,
		"elapsed", elapsed,
		"reply_length", len(res.reply),
	)
	return res.reply
}

// call performs the HTTP round trip to the backend.
func (c *Client) call(ctx context.Context, chatID, text string) result {
	body, err := json.Marshal(chatRequest{
		SessionID: chatID,
		UserID:    chatID,
		Message:   text,
		Fast:      c.fast,
	})
	if err != nil {
		return result{err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return result{err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return result{err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result{err: c.errorFromResponse(resp)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return result{err: fmt.Errorf("decoding response: %w", err)}
	}
	return result{reply: out.Reply}
}

// errorFromResponse extracts the diagnostic detail from a non-success
// response. The body is opaque; structured detail is preferred when present.
func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if eb.Detail != "" {
			return fmt.Errorf("backend error (%d): %s", resp.StatusCode, eb.Detail)
		}
		if eb.Error != "" {
			return fmt.Errorf("backend error (%d): %s", resp.StatusCode, eb.Error)
		}
	}
	return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// errorReply converts a backend failure into the user-visible reply.
func errorReply(err error) string {
	return truncate("Error: "+err.Error(), maxErrorReplyLen)
}

// truncate shortens a string to the given max rune count, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
