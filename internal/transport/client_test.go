package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/platform"
	"github.com/KirkDiggler/roll-sync/internal/transport"
)

// newGameLogServer runs a scripted feed. It verifies the authenticate
// handshake and the subscribe messages, then hands the connection to
// script for the test-specific exchange.
func newGameLogServer(t *testing.T, script func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()

		var auth platform.AuthenticateMessage
		require.NoError(t, readJSON(ctx, conn, &auth))
		require.Equal(t, platform.MessageTypeAuthenticate, auth.Type)
		require.Equal(t, "test-token", auth.Data.Token)
		require.Equal(t, "camp-1", auth.Data.CampaignID)

		require.NoError(t, writeEnvelope(ctx, conn, platform.Envelope{
			ID:        "evt-auth",
			EventType: platform.EventAuthenticated,
		}))

		for range platform.SubscribedEvents {
			var sub platform.SubscribeMessage
			require.NoError(t, readJSON(ctx, conn, &sub))
			require.Equal(t, platform.MessageTypeSubscribe, sub.Type)
			require.Equal(t, "camp-1", sub.Data.CampaignID)
		}

		if script != nil {
			script(ctx, conn)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env platform.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func wsURL(srv *httptest.Server) string {
	return strings.Replace(srv.URL, "http", "ws", 1)
}

func newClient(t *testing.T, endpoint string) *transport.Client {
	t.Helper()

	client, err := transport.New(&transport.Config{
		Endpoint:      endpoint,
		CampaignID:    "camp-1",
		Tokens:        transport.StaticToken("test-token"),
		ReconnectBase: time.Millisecond,
		MaxReconnects: 2,
	})
	require.NoError(t, err)
	return client
}

func nextEvent(t *testing.T, client *transport.Client) transport.Event {
	t.Helper()

	select {
	case ev := <-client.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return transport.Event{}
	}
}

func TestConnect_HandshakeAndMessageDelivery(t *testing.T) {
	srv := newGameLogServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = writeEnvelope(ctx, conn, platform.Envelope{
			ID:        "evt-1",
			EventType: platform.EventRollFulfilled,
			Data:      json.RawMessage(`{"rolls":[]}`),
		})
		// Hold the connection open until the client walks away.
		_, _, _ = conn.Read(ctx)
	})

	client := newClient(t, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	defer func() { _ = client.Disconnect() }()

	ev := nextEvent(t, client)
	assert.Equal(t, transport.KindConnected, ev.Kind)

	ev = nextEvent(t, client)
	require.Equal(t, transport.KindMessage, ev.Kind)
	require.NotNil(t, ev.Envelope)
	assert.Equal(t, platform.EventRollFulfilled, ev.Envelope.EventType)
	assert.Equal(t, "evt-1", ev.Envelope.ID)
}

func TestConnect_UnrecognizedEventsDropped(t *testing.T) {
	srv := newGameLogServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = writeEnvelope(ctx, conn, platform.Envelope{
			ID:        "evt-junk",
			EventType: "campaign/chat-message",
		})
		_ = writeEnvelope(ctx, conn, platform.Envelope{
			ID:        "evt-hp",
			EventType: platform.EventCharacterUpdate,
			Data:      json.RawMessage(`{}`),
		})
		_, _, _ = conn.Read(ctx)
	})

	client := newClient(t, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	defer func() { _ = client.Disconnect() }()

	require.Equal(t, transport.KindConnected, nextEvent(t, client).Kind)

	// The chat message never surfaces; the next event is the update.
	ev := nextEvent(t, client)
	require.Equal(t, transport.KindMessage, ev.Kind)
	assert.Equal(t, "evt-hp", ev.Envelope.ID)
}

func TestConnect_CredentialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newClient(t, wsURL(srv))

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnauthenticated(err))

	ev := nextEvent(t, client)
	assert.Equal(t, transport.KindCredentialExpired, ev.Kind)
}

func TestReconnect_ExhaustionIsTerminalExactlyOnce(t *testing.T) {
	var sessions atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessions.Add(1) > 1 {
			// Every dial after the first session fails, so the
			// reconnect budget drains.
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// Consume the handshake, then hang up.
		var auth platform.AuthenticateMessage
		_ = readJSON(r.Context(), conn, &auth)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	client := newClient(t, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	require.Equal(t, transport.KindConnected, nextEvent(t, client).Kind)

	ev := nextEvent(t, client)
	require.Equal(t, transport.KindDisconnected, ev.Kind)
	assert.True(t, ev.Terminal)
	assert.True(t, errors.IsUnavailable(ev.Err))

	// No further disconnected events follow the terminal one.
	select {
	case extra := <-client.Events():
		t.Fatalf("unexpected event after terminal disconnect: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	// Manual re-initiation after a terminal disconnect reaches the dial
	// again; the stale session does not report already connected.
	err := client.Connect(ctx)
	require.Error(t, err)
	assert.False(t, errors.IsAlreadyExists(err))
	assert.True(t, errors.IsUnavailable(err), "the scripted feed still refuses dials")
}

func TestReconnect_RecoversAndResubscribes(t *testing.T) {
	var sessions atomic.Int32
	srv := newGameLogServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if sessions.Add(1) == 1 {
			// First session: hang up to force a reconnect.
			return
		}
		_ = writeEnvelope(ctx, conn, platform.Envelope{
			ID:        "evt-after-reconnect",
			EventType: platform.EventRollFulfilled,
			Data:      json.RawMessage(`{"rolls":[]}`),
		})
		_, _, _ = conn.Read(ctx)
	})

	client := newClient(t, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	defer func() { _ = client.Disconnect() }()

	require.Equal(t, transport.KindConnected, nextEvent(t, client).Kind)

	// Second connected event marks the recovered session. The handshake
	// and subscribe exchange are re-verified by the server helper.
	require.Equal(t, transport.KindConnected, nextEvent(t, client).Kind)

	ev := nextEvent(t, client)
	require.Equal(t, transport.KindMessage, ev.Kind)
	assert.Equal(t, "evt-after-reconnect", ev.Envelope.ID)
}

func TestDisconnect_CleanCloseDoesNotReconnect(t *testing.T) {
	srv := newGameLogServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_, _, _ = conn.Read(ctx)
	})

	client := newClient(t, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	require.Equal(t, transport.KindConnected, nextEvent(t, client).Kind)

	require.NoError(t, client.Disconnect())

	ev := nextEvent(t, client)
	assert.Equal(t, transport.KindDisconnected, ev.Kind)
	assert.False(t, ev.Terminal)
	assert.NoError(t, ev.Err)
}

func TestConnect_AlreadyConnected(t *testing.T) {
	srv := newGameLogServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_, _, _ = conn.Read(ctx)
	})

	client := newClient(t, wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	defer func() { _ = client.Disconnect() }()

	err := client.Connect(ctx)
	assert.True(t, errors.IsAlreadyExists(err))
}

func TestConfig_Validate(t *testing.T) {
	_, err := transport.New(&transport.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Endpoint")
	assert.Contains(t, err.Error(), "CampaignID")
	assert.Contains(t, err.Error(), "Tokens")
}
