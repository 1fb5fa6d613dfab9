package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/auth"
	"github.com/ovoronin/talkline-server/internal/config"
	"github.com/ovoronin/talkline-server/internal/core"
	"github.com/ovoronin/talkline-server/internal/proto"
	"github.com/ovoronin/talkline-server/internal/store/sqlite"
)

// startTestServer wires a real in-memory store through the full stack and
// serves it from httptest.
func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test-clients",
		TTL:      time.Hour,
	})

	registry := core.NewRegistry()
	gw := Gateway{
		Presence: core.NewPresenceTracker(registry, st, &logger),
		Typing:   core.NewTypingCoordinator(registry),
		Delivery: core.NewDeliveryEngine(registry, st, &logger),
		Mutation: core.NewMutationBroadcaster(registry, st, &logger),
	}

	server := NewServer(gw, authService, st, config.Config{
		Addr:              ":0",
		AllowedOrigins:    []string{"*"},
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// registerUser creates an account over REST and returns its token and id.
func registerUser(t *testing.T, ts *httptest.Server, username string) (token, userID string) {
	t.Helper()

	body, _ := json.Marshal(RegisterRequest{Username: username, Password: "secret123"})
	resp, err := ts.Client().Post(ts.URL+"/api/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: unexpected status %d", username, resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	claims, err := auth.ValidateToken(&auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test-clients",
	}, authResp.Token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return authResp.Token, claims.UserID
}

// dialWS opens an authenticated websocket connection.
func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// sendFrame writes one inbound envelope.
func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s data: %v", frameType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
		t.Fatalf("write %s frame: %v", frameType, err)
	}
}

// readEvent reads frames until one with the wanted event name arrives,
// skipping unrelated broadcasts (presence churn mostly).
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read while waiting for %s: %v", event, err)
		}
		if outbound.Type == proto.OutboundTypeError {
			if event == proto.OutboundTypeError {
				raw, _ := json.Marshal(outbound.Error)
				return raw
			}
			t.Fatalf("unexpected error frame while waiting for %s: %+v", event, outbound.Error)
		}
		if outbound.Event == event {
			return outbound.Data
		}
	}
}

// waitForOnline blocks until the connection observes a user_status broadcast
// reporting the given user online. Used to sync tests with the counterpart's
// registration before sending anything at them.
func waitForOnline(t *testing.T, ctx context.Context, conn *websocket.Conn, userID string) {
	t.Helper()

	for {
		var status proto.StatusBroadcast
		raw := readEvent(t, ctx, conn, proto.EventUserStatus)
		if err := json.Unmarshal(raw, &status); err != nil {
			t.Fatalf("unmarshal user_status: %v", err)
		}
		if status.UserID == userID && status.IsOnline {
			return
		}
	}
}

// readErrorFrame reads frames until an error envelope arrives.
func readErrorFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var outbound struct {
			Type  string       `json:"type"`
			Error *proto.Error `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read while waiting for error frame: %v", err)
		}
		if outbound.Type == proto.OutboundTypeError {
			return outbound.Error
		}
	}
}
