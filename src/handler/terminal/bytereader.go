package terminal

import (
	"bytes"
	"errors"
	"io"
)

// ErrSubsystemStartFailed is reported by TerminalService.Start when
// Ready() fails to hold.
var ErrSubsystemStartFailed = errors.New("terminal: subsystem start failed")

// newByteReader wraps a byte slice as an io.ReadSeeker for
// http.ServeContent's byte-range support.
func newByteReader(data []byte) io.ReadSeeker {
	return bytes.NewReader(data)
}
