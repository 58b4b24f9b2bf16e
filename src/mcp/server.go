package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/hydrogen-host/terminal/src/handler/terminal"
)

// Server exposes the terminal subsystem's operational state as MCP
// tools, mirroring the host's own HTTP surface for agent clients.
//
// Grounded on the teacher's src/mcp/server.go: NewServer/
// setupHTTPEndpoints/LogToolCall kept near-verbatim; Handlers trimmed
// from filesystem/process/network to the one terminal service this
// module owns.
type Server struct {
	mcpServer *mcp.Server
	terminal  *terminal.TerminalService
	engine    *gin.Engine
}

// NewServer creates a new MCP server using the official SDK.
func NewServer(ginEngine *gin.Engine, terminalService *terminal.TerminalService) (*Server, error) {
	logrus.Info("creating MCP server")

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "Hydrogen Terminal Host",
			Version: "0.1.0",
		},
		nil,
	)

	server := &Server{
		mcpServer: mcpServer,
		terminal:  terminalService,
		engine:    ginEngine,
	}

	logrus.Info("registering tools")
	server.registerTerminalTools()
	logrus.Info("tools registered")

	server.setupHTTPEndpoints()

	return server, nil
}

// Serve is a no-op: the MCP server is served via HTTP endpoints
// mounted on the gin engine, not a separate listener.
func (s *Server) Serve() error { return nil }

func (s *Server) setupHTTPEndpoints() {
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	s.engine.Any("/mcp/*path", gin.WrapH(http.StripPrefix("/mcp", handler)))
	s.engine.Any("/mcp", gin.WrapH(handler))

	logrus.Info("MCP HTTP endpoints configured at /mcp")
}

// LogToolCall wraps a tool handler function with logging middleware.
func LogToolCall[T any, R any](toolName string, handler func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, R, error)) func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, R, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, R, error) {
		start := time.Now()
		logrus.Infof("tool call started: %s", toolName)

		result, output, err := handler(ctx, req, args)

		duration := time.Since(start)
		if err != nil {
			logrus.Errorf("tool call failed: %s (duration: %v, error: %v)", toolName, duration, err)
			// Claude's API rejects tool results with is_error=true but empty content.
			if err.Error() == "" {
				err = fmt.Errorf("tool %s failed with unknown error", toolName)
			}
		} else {
			logrus.Infof("tool call completed: %s (duration: %v)", toolName, duration)
		}

		return result, output, err
	}
}
