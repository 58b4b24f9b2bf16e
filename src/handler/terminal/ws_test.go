package terminal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestEndpoint(t *testing.T, cfg Config) (*httptest.Server, *SessionManager) {
	t.Helper()
	cfg.ShellCommand = catShell
	cfg = cfg.WithDefaults()
	manager := NewSessionManager(ManagerConfig{
		MaxSessions:        cfg.MaxSessions,
		IdleTimeoutSeconds: cfg.IdleTimeoutSeconds,
		MaxSessionSeconds:  cfg.MaxSessionSeconds,
		ShellCommand:       cfg.ShellCommand,
		BufferSize:         cfg.BufferSize,
		ExitGrace:          2 * time.Second,
	})
	leases := NewLeaseStore()
	ep := NewWsEndpoint(cfg, manager, leases)
	srv := httptest.NewServer(http.HandlerFunc(ep.ServeHTTP))
	t.Cleanup(func() {
		manager.Drain()
		srv.Close()
	})
	return srv, manager
}

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// TestHappyPathEchoRoundTrip covers scenario 1 (happy path) and L1
// (byte-fidelity echo): input sent as a control frame arrives back as
// binary PTY output, once as the PTY's own echo and once as cat's copy,
// each with "\n" mapped to "\r\n" by the line discipline.
func TestHappyPathEchoRoundTrip(t *testing.T) {
	srv, _ := newTestEndpoint(t, Config{AuthKey: "", DevMode: true, MaxSessions: 10})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg, _ := json.Marshal(controlMessage{Type: msgTypeInput, Data: "hello\n"})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var got []byte
	for len(got) < len("hello\n") {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if mt == websocket.BinaryMessage {
			got = append(got, data...)
		}
	}
	if string(got) != "hello\n" {
		t.Fatalf("echoed = %q, want %q", got, "hello\n")
	}
}

// TestCapacityExceededScenario covers scenario 2: with MaxSessions=1,
// a second concurrent connection is rejected with the literal
// {"error":"capacity"} frame and WS close code 4429.
func TestCapacityExceededScenario(t *testing.T) {
	srv, _ := newTestEndpoint(t, Config{DevMode: true, MaxSessions: 1})

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("second dial (upgrade still succeeds before rejection): %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if string(data) != `{"error":"capacity"}` {
		t.Fatalf("error frame = %s, want {\"error\":\"capacity\"}", data)
	}

	_, _, err = second.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected close error, got %T: %v", err, err)
	}
	if closeErr.Code != 4429 {
		t.Fatalf("close code = %d, want 4429", closeErr.Code)
	}
}

// TestAuthFallbackQueryKey covers scenario 3: a client that cannot set
// an Authorization header authenticates via ?key= instead; a client
// with no credential is upgraded and then closed with 4401.
func TestAuthFallbackQueryKey(t *testing.T) {
	srv, _ := newTestEndpoint(t, Config{AuthKey: "s3cr3t", MaxSessions: 10})

	unauth, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("dial without credentials (upgrade precedes the auth close): %v", err)
	}
	unauth.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = unauth.ReadMessage()
	if closeErr, ok := err.(*websocket.CloseError); !ok || closeErr.Code != 4401 {
		t.Fatalf("expected close 4401 without credentials, got %T: %v", err, err)
	}
	unauth.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "key=s3cr3t"), nil)
	if err != nil {
		t.Fatalf("dial with ?key=: %v", err)
	}
	conn.Close()
}

// TestIdleTimeoutScenario covers scenario 4: a session whose PTY gets
// no input is closed with 4408 once Tick observes it past
// IdleTimeoutSeconds.
func TestIdleTimeoutScenario(t *testing.T) {
	srv, manager := newTestEndpoint(t, Config{DevMode: true, MaxSessions: 10, IdleTimeoutSeconds: 1})
	stop := manager.StartTicker(50 * time.Millisecond)
	defer stop()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected close error from idle timeout, got %T: %v", err, err)
	}
	if closeErr.Code != 4408 {
		t.Fatalf("close code = %d, want 4408", closeErr.Code)
	}
}

// TestResizeAppliedImmediately covers L2: a resize control message
// updates the PTY window synchronously.
func TestResizeAppliedImmediately(t *testing.T) {
	srv, manager := newTestEndpoint(t, Config{DevMode: true, MaxSessions: 10})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "cols=80&rows=24"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	var id string
	for time.Now().Before(deadline) {
		ids := manager.List()
		if len(ids) == 1 {
			id = ids[0]
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if id == "" {
		t.Fatal("session never appeared in manager")
	}

	msg, _ := json.Marshal(controlMessage{Type: msgTypeResize, Cols: 120, Rows: 50})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write resize: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, ok := manager.Get(id)
		if ok && s.Pty.WindowSize() == (Window{Cols: 120, Rows: 50}) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("resize was not applied")
}
