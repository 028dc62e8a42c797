// Package transport maintains the persistent WebSocket connection to
// the remote platform's game log feed. It performs the authenticate
// handshake, subscribes to the update streams once the feed confirms
// authentication, and surfaces everything else as typed events for the
// sync engine to consume.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/platform"
)

// Defaults for the reconnect policy. Backoff is linear: base * attempt.
const (
	DefaultReconnectBase = 5 * time.Second
	DefaultMaxReconnects = 10

	eventBufferSize = 64
)

// Kind discriminates transport events.
type Kind string

// Transport event kinds
const (
	// KindConnected fires after a successful dial and handshake
	KindConnected Kind = "connected"

	// KindDisconnected fires on a clean close, or (with Terminal set)
	// once the reconnect budget is exhausted
	KindDisconnected Kind = "disconnected"

	// KindMessage carries a recognized application envelope
	KindMessage Kind = "message"

	// KindCredentialExpired fires when the feed rejects the credential;
	// the transport stops and waits for the user to re-authenticate
	KindCredentialExpired Kind = "credentialExpired"
)

// Event is one transport notification. Envelope is set for KindMessage
// with the original eventType tag preserved, so consumers can
// re-discriminate without re-parsing.
type Event struct {
	Kind     Kind
	Envelope *platform.Envelope
	Terminal bool
	Err      error
}

// TokenProvider supplies the short-lived credential for the handshake.
// Acquiring it (typically through an HTTP auth proxy) is a collaborator
// concern; the transport just asks for a fresh one per dial.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed credential.
type StaticToken string

// Token returns the fixed credential
func (s StaticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// Config holds the dependencies and tuning for the transport client
type Config struct {
	Endpoint      string
	CampaignID    string
	Tokens        TokenProvider
	ReconnectBase time.Duration // zero means DefaultReconnectBase
	MaxReconnects int           // zero means DefaultMaxReconnects
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateRequired("Endpoint", c.Endpoint, vb)
	errors.ValidateRequired("CampaignID", c.CampaignID, vb)
	if c.Tokens == nil {
		vb.RequiredField("Tokens")
	}

	return vb.Build()
}

// Client is the game log transport.
type Client struct {
	cfg    Config
	events chan Event

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
}

// New creates a transport client with the provided configuration
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	resolved := *cfg
	if resolved.ReconnectBase == 0 {
		resolved.ReconnectBase = DefaultReconnectBase
	}
	if resolved.MaxReconnects == 0 {
		resolved.MaxReconnects = DefaultMaxReconnects
	}

	return &Client{
		cfg:    resolved,
		events: make(chan Event, eventBufferSize),
	}, nil
}

// Events returns the transport event stream. Events arrive in order;
// the channel is buffered, and a stalled consumer backpressures reads.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect performs the credential exchange and opens the streaming
// connection. On auth rejection it emits credentialExpired and returns
// an Unauthenticated error without retrying. The provided context
// governs the whole session, including reconnects.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.AlreadyExists("already connected")
	}
	c.stopped = false
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		if errors.IsUnauthenticated(err) {
			c.emit(Event{Kind: KindCredentialExpired, Err: err})
		}
		return err
	}

	c.setConn(conn)
	c.emit(Event{Kind: KindConnected})
	go c.runLoop(ctx, conn)
	return nil
}

// Disconnect closes the connection cleanly. No reconnect is scheduled.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.stopped = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "client disconnect")
}

// dial acquires a credential, opens the socket, and sends the
// authenticate message. The subscribe messages wait for the feed's
// authenticated confirmation.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := c.cfg.Tokens.Token(ctx)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnauthenticated, "failed to acquire credential")
	}

	conn, resp, err := websocket.Dial(ctx, c.cfg.Endpoint, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errors.Unauthenticatedf("game log rejected credential: status %d", resp.StatusCode)
		}
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to dial game log")
	}

	if err := c.write(ctx, conn, platform.NewAuthenticate(token, c.cfg.CampaignID)); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake failed")
		return nil, err
	}
	return conn, nil
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal outbound message")
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "failed to write to game log")
	}
	return nil
}

// runLoop reads frames until the connection drops, then hands off to
// the reconnect policy. It is the only goroutine reading the socket.
func (c *Client) runLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if c.isStopped() || ctx.Err() != nil {
				c.setConn(nil)
				c.emit(Event{Kind: KindDisconnected})
				return
			}

			slog.Warn("game log connection lost", "error", err)
			conn = c.reconnect(ctx)
			if conn == nil {
				return
			}
			continue
		}

		c.handleFrame(ctx, conn, data)
	}
}

// reconnect retries with delay = base * attempt up to the configured
// cap. Exhausting the cap emits exactly one terminal disconnected
// event; reconnection must then be manually re-initiated.
func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	for attempt := 1; attempt <= c.cfg.MaxReconnects; attempt++ {
		delay := c.cfg.ReconnectBase * time.Duration(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.setConn(nil)
			c.emit(Event{Kind: KindDisconnected})
			return nil
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if errors.IsUnauthenticated(err) {
				c.setConn(nil)
				c.emit(Event{Kind: KindCredentialExpired, Err: err})
				return nil
			}
			if !errors.GetCode(err).Retryable() {
				c.setConn(nil)
				c.emit(Event{Kind: KindDisconnected, Terminal: true, Err: err})
				return nil
			}
			slog.Warn("reconnect attempt failed",
				"attempt", attempt,
				"max_attempts", c.cfg.MaxReconnects,
				"error", err,
			)
			continue
		}

		c.setConn(conn)
		c.emit(Event{Kind: KindConnected})
		slog.Info("game log reconnected", "attempt", attempt)
		return conn
	}

	// Every session exit clears the conn, so Connect can re-initiate
	// once the terminal disconnect has been observed.
	c.setConn(nil)
	c.emit(Event{
		Kind:     KindDisconnected,
		Terminal: true,
		Err:      errors.Unavailablef("gave up after %d reconnect attempts", c.cfg.MaxReconnects),
	})
	return nil
}

// handleFrame discriminates one inbound frame by its eventType tag.
// Only the authenticated confirmation and the subscribed application
// streams are recognized; everything else is logged and dropped.
func (c *Client) handleFrame(ctx context.Context, conn *websocket.Conn, data []byte) {
	var env platform.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("dropping malformed game log frame", "error", err)
		return
	}

	switch {
	case env.EventType == platform.EventAuthenticated:
		slog.Info("authenticated to game log", "campaign_id", c.cfg.CampaignID)
		for _, stream := range platform.SubscribedEvents {
			if err := c.write(ctx, conn, platform.NewSubscribe(stream, c.cfg.CampaignID)); err != nil {
				slog.Error("failed to subscribe", "event", stream, "error", err)
				return
			}
		}

	case env.EventType == platform.EventRollFulfilled, platform.IsCharacterUpdate(env.EventType):
		c.emit(Event{Kind: KindMessage, Envelope: &env})

	default:
		slog.Debug("dropping unrecognized event", "event_type", env.EventType)
	}
}

func (c *Client) emit(ev Event) {
	c.events <- ev
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
