package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hydrogen-host/terminal/src/api"
	"github.com/hydrogen-host/terminal/src/handler/terminal"
	"github.com/hydrogen-host/terminal/src/lifecycle"
	"github.com/hydrogen-host/terminal/src/mcp"
)

// @title           Hydrogen Terminal Host
// @version         0.1.0
// @description     Browser-accessible terminal service: xterm.js over WebSocket bridged to server-spawned PTY shells.

// @host      localhost:8080
// @BasePath  /
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: .env file not found")
	}

	port := envInt("PORT", 8080)

	cfg := terminal.Config{
		Enabled:      envBool("TERMINAL_ENABLED", true),
		WebPath:      envString("TERMINAL_WEB_PATH", "/terminal"),
		WebRoot:      envString("TERMINAL_WEB_ROOT", "./assets/terminal"),
		ShellCommand: envString("TERMINAL_SHELL", defaultShell()),
		MaxSessions:  envInt("TERMINAL_MAX_SESSIONS", 10),
		AuthKey:      os.Getenv("TERMINAL_AUTH_KEY"),
		DevMode:      envBool("TERMINAL_DEV_MODE", false),
	}.WithDefaults()

	if !cfg.DevMode && cfg.AuthKey == "" {
		log.Fatalf("TERMINAL_AUTH_KEY must be set outside dev mode (set TERMINAL_DEV_MODE=true only for local development)")
	}

	assets, err := terminal.NewAssetProvider(cfg.WebRoot, []byte(os.Getenv("PAYLOAD_KEY")))
	if err != nil {
		log.Fatalf("failed to initialize terminal asset provider: %v", err)
	}

	svc := terminal.NewTerminalService(cfg, assets)

	// Registry drives the strict launch order the terminal core
	// requires: Registry -> Network -> WebSocket host -> TerminalService.
	// The generic network/websocket-host subsystems are external
	// collaborators in this build (router.Run below stands in for
	// them); TerminalService is the one subsystem this module owns.
	registry := lifecycle.NewRegistry()
	if cfg.Enabled {
		if err := registry.Register(svc); err != nil {
			log.Fatalf("failed to register terminal subsystem: %v", err)
		}
	}

	if err := registry.Launch(); err != nil {
		log.Fatalf("failed to launch subsystems: %v", err)
	}
	defer func() {
		if err := registry.Land(); err != nil {
			logrus.WithError(err).Error("error during landing")
		}
	}()

	router := api.SetupRouter(svc, false, true)

	mcpServer, err := mcp.NewServer(router, svc)
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}
	if err := mcpServer.Serve(); err != nil {
		log.Fatalf("failed to start MCP server: %v", err)
	}

	addr := fmt.Sprintf(":%d", port)
	logrus.Infof("starting terminal host on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

func defaultShell() string {
	for _, candidate := range []string{"/bin/bash", "/bin/zsh", "/bin/sh"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "/bin/sh"
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
