package terminal

import (
	"testing"
	"time"
)

// /bin/cat echoes stdin back to stdout verbatim, standing in for the
// spec's test shell stub ("/bin/echo-shell") for byte-fidelity (L1)
// and close-sequence (P1) checks.
const catShell = "/bin/cat"

func TestPtyChannelRoundTrip(t *testing.T) {
	ch, err := Spawn(catShell, nil, Window{Cols: 80, Rows: 24}, 2*time.Second)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer ch.Close()

	want := []byte("hello pty\n")
	if _, err := ch.Write(want); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, len(want))
	deadline := time.Now().Add(2 * time.Second)
	got := 0
	for got < len(want) && time.Now().Before(deadline) {
		n, err := ch.Read(buf[got:])
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got += n
	}

	if string(buf[:got]) != string(want) {
		t.Fatalf("round trip mismatch: got %q want %q", buf[:got], want)
	}
}

func TestPtyChannelResizeIdempotent(t *testing.T) {
	ch, err := Spawn(catShell, nil, Window{Cols: 80, Rows: 24}, 2*time.Second)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer ch.Close()

	if err := ch.Resize(Window{Cols: 100, Rows: 40}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if got := ch.WindowSize(); got != (Window{Cols: 100, Rows: 40}) {
		t.Fatalf("window size = %+v, want {100 40}", got)
	}
	// Same size again must be a no-op, not an error (L2 + idempotence).
	if err := ch.Resize(Window{Cols: 100, Rows: 40}); err != nil {
		t.Fatalf("idempotent resize: %v", err)
	}
}

// TestPtyChannelCloseReapsChild covers P1 (no zombies): after Close
// returns, Done() must already be closed.
func TestPtyChannelCloseReapsChild(t *testing.T) {
	ch, err := Spawn(catShell, nil, Window{Cols: 80, Rows: 24}, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-ch.Done():
	default:
		t.Fatal("expected Done() to be closed after Close() returns")
	}
}

func TestSpawnUnknownShell(t *testing.T) {
	_, err := Spawn("/no/such/shell-binary", nil, Window{Cols: 80, Rows: 24}, time.Second)
	if err == nil {
		t.Fatal("expected SpawnError for a missing shell")
	}
	var spawnErr *SpawnError
	if !asSpawnError(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T: %v", err, err)
	}
}

func asSpawnError(err error, target **SpawnError) bool {
	se, ok := err.(*SpawnError)
	if !ok {
		return false
	}
	*target = se
	return true
}
