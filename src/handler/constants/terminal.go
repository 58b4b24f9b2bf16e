package constants

// CloseReason tags (stringified) for session closure, logging, and the
// client-facing exit/error frames.
const (
	CloseReasonClientClose      = "client_close"
	CloseReasonIdleTimeout      = "idle_timeout"
	CloseReasonAbsoluteTimeout  = "absolute_timeout"
	CloseReasonShellExit        = "shell_exit"
	CloseReasonAuthFailure      = "auth_failure"
	CloseReasonCapacityExceeded = "capacity_exceeded"
	CloseReasonShuttingDown     = "shutting_down"
	CloseReasonProtocolError    = "protocol_error"
	CloseReasonIoError          = "io_error"
)

// Session state constants, advancing monotonically.
const (
	SessionStateStarting = "starting"
	SessionStateRunning  = "running"
	SessionStateDraining = "draining"
	SessionStateClosed   = "closed"
)
