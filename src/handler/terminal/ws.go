package terminal

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hydrogen-host/terminal/src/handler/constants"
)

// ErrInputStalled is returned when a PTY write blocks past
// InputStallSeconds, e.g. because the shell process has stopped
// reading its stdin.
var ErrInputStalled = errors.New("input write stalled")

// WsEndpoint is the per-socket state machine that turns a raw
// WebSocket into a PTY-bound terminal session:
// AwaitAuth -> Authenticated -> Bound -> Open <-> (Ping) -> Closing -> Closed.
//
// Grounded on the teacher's HandleTerminalWS (src/handler/terminal.go)
// for the upgrade/query-param/goroutine-split shape, and on the
// eenlars-alive WS handler for ping/pong deadline management and
// write-mutex-guarded concurrent sends.
type WsEndpoint struct {
	cfg      Config
	manager  *SessionManager
	leases   *LeaseStore
	upgrader websocket.Upgrader
}

func NewWsEndpoint(cfg Config, manager *SessionManager, leases *LeaseStore) *WsEndpoint {
	return &WsEndpoint{
		cfg:     cfg,
		manager: manager,
		leases:  leases,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.BufferSize,
			WriteBufferSize: cfg.BufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.CorsOrigin == "*" || r.Header.Get("Origin") == "" || r.Header.Get("Origin") == cfg.CorsOrigin
			},
		},
	}
}

// wsBindingImpl adapts one gorilla connection to the SessionManager's
// WsBinding interface. Outbound PTY output is queued onto outCh and
// flushed by a dedicated writer goroutine so queued.Load() reports a
// real backlog depth in bytes; downlink uses that to honor the
// high/low watermark backpressure policy instead of reading the PTY
// faster than the socket can drain.
type wsBindingImpl struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once

	outCh  chan []byte
	queued atomic.Int64
}

func newWsBinding(conn *websocket.Conn) *wsBindingImpl {
	b := &wsBindingImpl{
		conn:    conn,
		closeCh: make(chan struct{}),
		outCh:   make(chan []byte, 256),
	}
	go b.writeLoop()
	return b
}

func (b *wsBindingImpl) writeLoop() {
	for {
		select {
		case <-b.closeCh:
			return
		case data := <-b.outCh:
			b.writeMu.Lock()
			err := b.conn.WriteMessage(websocket.BinaryMessage, data)
			b.writeMu.Unlock()
			b.queued.Add(-int64(len(data)))
			if err != nil {
				return
			}
		}
	}
}

// QueuedBytes reports the current outbound backlog, used by downlink
// to decide whether PTY reads should pause.
func (b *wsBindingImpl) QueuedBytes() int64 { return b.queued.Load() }

func (b *wsBindingImpl) SendOutput(data []byte) error {
	cp := append([]byte(nil), data...)
	select {
	case <-b.closeCh:
		return ErrClosed
	case b.outCh <- cp:
		b.queued.Add(int64(len(cp)))
		return nil
	}
}

func (b *wsBindingImpl) SendExit(code int) error {
	payload, err := json.Marshal(exitMessage{Type: msgTypeExit, Code: code})
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, payload)
}

func (b *wsBindingImpl) RequestClose(code int, reason string) {
	b.closeOnce.Do(func() {
		b.writeMu.Lock()
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		b.writeMu.Unlock()
		close(b.closeCh)
	})
}

// ServeHTTP authenticates, upgrades, creates (or would create) a
// Session, and pumps bytes until the socket or the session closes.
func (e *WsEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// AwaitAuth: header, then query key, then query lease, then
	// (dev mode only) accept-all.
	if !e.authenticate(r) {
		conn, err := e.upgrader.Upgrade(w, r, nil)
		if err == nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(4401, constants.CloseReasonAuthFailure),
				time.Now().Add(time.Second))
			_ = conn.Close()
		} else {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("terminal ws upgrade failed")
		return
	}

	cols, rows := queryWindow(r)

	// Authenticated: create the session.
	session, err := e.manager.Create("User", Window{Cols: cols, Rows: rows}, nil)
	if err != nil {
		code := 1011
		if err == ErrCapacityExceeded {
			code = 4429
		} else if err == ErrShuttingDown {
			code = 1001
		}
		payload, _ := json.Marshal(errorMessage{Error: errKind(err)})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, errKind(err)), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	binding := newWsBinding(conn)
	if err := e.manager.BindWs(session.ID.String(), binding); err != nil {
		_ = e.manager.Close(session.ID.String(), CloseReason{Kind: constants.CloseReasonProtocolError})
		_ = conn.Close()
		return
	}

	e.pump(session, binding, conn)
}

func errKind(err error) string {
	switch err {
	case ErrCapacityExceeded:
		return "capacity"
	case ErrShuttingDown:
		return "shutting_down"
	default:
		return "internal"
	}
}

// writeWithStall writes to the PTY on a background goroutine and
// returns ErrInputStalled if it has not completed within stall. The
// goroutine is left to finish on its own rather than retried or
// canceled — the caller closes the session (and its PtyChannel) right
// after a stall, which unblocks the stuck Write via the closed fd.
func writeWithStall(pty *PtyChannel, data []byte, stall time.Duration) error {
	done := make(chan error, 1)
	go func() {
		_, err := pty.Write(data)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(stall):
		return ErrInputStalled
	}
}

func queryWindow(r *http.Request) (cols, rows int) {
	cols, rows = 80, 24
	if v := r.URL.Query().Get("cols"); v != "" {
		if n, ok := atoi(v); ok {
			cols = n
		}
	}
	if v := r.URL.Query().Get("rows"); v != "" {
		if n, ok := atoi(v); ok {
			rows = n
		}
	}
	return
}

func atoi(s string) (int, bool) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// authenticate checks the handshake credential sources in the order
// the spec mandates: Authorization header, then ?key=, then ?lease=,
// then (dev mode only) accept-all.
func (e *WsEndpoint) authenticate(r *http.Request) bool {
	if e.cfg.AuthKey == "" && e.cfg.DevMode {
		return true
	}

	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Key ") && strings.TrimPrefix(h, "Key ") == e.cfg.AuthKey {
			return true
		}
	}
	if k := r.URL.Query().Get("key"); k != "" && k == e.cfg.AuthKey {
		return true
	}
	if l := r.URL.Query().Get("lease"); l != "" && e.leases != nil {
		return e.leases.Consume(l)
	}
	return false
}

// pump runs the Open state: two cooperative goroutines (uplink and
// downlink) plus the ping/pong keepalive, until the session closes or
// the peer disconnects.
func (e *WsEndpoint) pump(session *Session, binding *wsBindingImpl, conn *websocket.Conn) {
	id := session.ID.String()
	defer func() {
		e.manager.UnbindWs(id)
		_ = conn.Close()
	}()

	pongTimeout := time.Duration(e.cfg.PongTimeoutSeconds) * time.Second
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		e.manager.Touch(id)
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.downlink(session, binding)
	}()
	go func() {
		defer wg.Done()
		e.uplink(session, binding, conn)
	}()

	pingInterval := time.Duration(e.cfg.PingIntervalSeconds) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-binding.closeCh:
			waitDone := make(chan struct{})
			go func() {
				wg.Wait()
				close(waitDone)
			}()
			select {
			case <-waitDone:
			case <-time.After(time.Duration(e.cfg.ExitWaitSeconds) * time.Second):
				logrus.WithField("session", id).Warn("terminal pump drain exceeded ExitWaitSeconds")
			}
			return
		case <-ticker.C:
			binding.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			binding.writeMu.Unlock()
			if err != nil {
				_ = e.manager.Close(id, CloseReason{Kind: constants.CloseReasonIoError})
				wg.Wait()
				return
			}
		}
	}
}

// downlink reads PTY output in BufferSize chunks and sends it as
// binary frames, until the PTY closes. When the outbound backlog
// crosses WriteHighWatermark it stops reading the PTY until the
// backlog drains back below WriteLowWatermark, so a slow client
// cannot force unbounded buffering.
func (e *WsEndpoint) downlink(session *Session, binding *wsBindingImpl) {
	buf := make([]byte, e.cfg.BufferSize)
	paused := false
	for {
		select {
		case <-binding.closeCh:
			return
		default:
		}

		if !paused && binding.QueuedBytes() >= int64(e.cfg.WriteHighWatermark) {
			paused = true
		}
		if paused {
			if binding.QueuedBytes() <= int64(e.cfg.WriteLowWatermark) {
				paused = false
			} else {
				select {
				case <-binding.closeCh:
					return
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}
		}

		n, err := session.Pty.Read(buf)
		if n > 0 {
			if werr := binding.SendOutput(buf[:n]); werr != nil {
				return
			}
			e.manager.Touch(session.ID.String())
		}
		if err != nil {
			return
		}
	}
}

// uplink reads WS frames, decodes JSON control messages, and writes
// input bytes to the PTY; malformed JSON closes the session with
// ProtocolError.
func (e *WsEndpoint) uplink(session *Session, binding *wsBindingImpl, conn *websocket.Conn) {
	id := session.ID.String()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			_ = e.manager.Close(id, CloseReason{Kind: constants.CloseReasonIoError})
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = e.manager.Close(id, CloseReason{Kind: constants.CloseReasonProtocolError})
			return
		}

		switch msg.Type {
		case msgTypeInput:
			stall := time.Duration(e.cfg.InputStallSeconds) * time.Second
			if err := writeWithStall(session.Pty, []byte(msg.Data), stall); err != nil {
				_ = e.manager.Close(id, CloseReason{Kind: constants.CloseReasonIoError})
				return
			}
			e.manager.Touch(id)
		case msgTypeResize:
			_ = session.Pty.Resize(Window{Cols: msg.Cols, Rows: msg.Rows})
		case msgTypePing:
			payload, _ := json.Marshal(pongMessage{Type: msgTypePong, Ts: msg.Ts})
			binding.writeMu.Lock()
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			binding.writeMu.Unlock()
			e.manager.Touch(id)
		default:
			_ = e.manager.Close(id, CloseReason{Kind: constants.CloseReasonProtocolError})
			return
		}
	}
}
