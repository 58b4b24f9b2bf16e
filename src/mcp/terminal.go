package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hydrogen-host/terminal/src/handler/constants"
	"github.com/hydrogen-host/terminal/src/handler/terminal"
)

// TerminalStatusInput is the (empty) input for the status tool.
type TerminalStatusInput struct{}

// TerminalStatusOutput reports subsystem readiness and live session count.
type TerminalStatusOutput struct {
	Ready        bool `json:"ready"`
	LiveSessions int  `json:"liveSessions"`
}

// TerminalListSessionsInput is the (empty) input for the list tool.
type TerminalListSessionsInput struct{}

// TerminalListSessionsOutput lists live session ids.
type TerminalListSessionsOutput struct {
	SessionIDs []string `json:"sessionIds"`
}

// TerminalCloseSessionInput names the session to force-close.
type TerminalCloseSessionInput struct {
	SessionID string `json:"sessionId" jsonschema:"the session id to close, as returned by terminal_list_sessions"`
}

// TerminalCloseSessionOutput reports whether the close was accepted.
type TerminalCloseSessionOutput struct {
	Closed bool `json:"closed"`
}

// registerTerminalTools registers the terminal_status,
// terminal_list_sessions, and terminal_close_session tools,
// mirroring the teacher's lifecycle stop/status tool shape
// (src/mcp/lifecycle.go) generalized to the terminal subsystem.
func (s *Server) registerTerminalTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "terminal_status",
		Description: "Get the terminal subsystem's readiness and number of live sessions.",
	}, LogToolCall("terminal_status", func(ctx context.Context, req *mcp.CallToolRequest, input TerminalStatusInput) (*mcp.CallToolResult, TerminalStatusOutput, error) {
		if s.terminal == nil {
			return nil, TerminalStatusOutput{}, nil
		}
		return nil, TerminalStatusOutput{
			Ready:        s.terminal.Ready(),
			LiveSessions: s.terminal.Manager().Count(),
		}, nil
	}))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "terminal_list_sessions",
		Description: "List the ids of currently live terminal sessions.",
	}, LogToolCall("terminal_list_sessions", func(ctx context.Context, req *mcp.CallToolRequest, input TerminalListSessionsInput) (*mcp.CallToolResult, TerminalListSessionsOutput, error) {
		if s.terminal == nil {
			return nil, TerminalListSessionsOutput{SessionIDs: []string{}}, nil
		}
		return nil, TerminalListSessionsOutput{SessionIDs: s.terminal.Manager().List()}, nil
	}))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "terminal_close_session",
		Description: "Force-close a terminal session by id, reaping its PTY.",
	}, LogToolCall("terminal_close_session", func(ctx context.Context, req *mcp.CallToolRequest, input TerminalCloseSessionInput) (*mcp.CallToolResult, TerminalCloseSessionOutput, error) {
		if s.terminal == nil {
			return nil, TerminalCloseSessionOutput{Closed: false}, nil
		}
		err := s.terminal.Manager().Close(input.SessionID, terminal.CloseReason{Kind: constants.CloseReasonClientClose})
		return nil, TerminalCloseSessionOutput{Closed: err == nil}, nil
	}))
}
