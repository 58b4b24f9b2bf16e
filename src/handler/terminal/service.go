package terminal

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouteRegistrar is the narrow interface TerminalService needs from
// the generic HTTP server, matching the spec's "register a path
// handler + upgrade callback" boundary.
type RouteRegistrar interface {
	GET(path string, handler gin.HandlerFunc)
	POST(path string, handler gin.HandlerFunc)
}

// TerminalService is the facade composing PtyChannel, SessionManager,
// and WsEndpoint into the host-facing surface: HTTP route
// registration and init/shutdown hooks for the lifecycle.
//
// Grounded on the teacher's HandleTerminalPage/HandleTerminalWS glue
// (src/handler/terminal.go) and router.go's CORS/content-type idiom.
type TerminalService struct {
	cfg      Config
	manager  *SessionManager
	ws       *WsEndpoint
	leases   *LeaseStore
	assets   AssetProvider
	stopTick func()

	// CorsOverride, if set, takes precedence over cfg.CorsOrigin and
	// the WebServer global (per the §4.4 CORS resolution order).
	CorsOverride string
}

func NewTerminalService(cfg Config, assets AssetProvider) *TerminalService {
	cfg = cfg.WithDefaults()
	manager := NewSessionManager(ManagerConfig{
		MaxSessions:       cfg.MaxSessions,
		IdleTimeoutSeconds: cfg.IdleTimeoutSeconds,
		MaxSessionSeconds:  cfg.MaxSessionSeconds,
		ShellCommand:       cfg.ShellCommand,
		BufferSize:         cfg.BufferSize,
		ExitGrace:          cfg.exitGrace(),
		CloseOnDisconnect:  true,
	})
	leases := NewLeaseStore()
	return &TerminalService{
		cfg:     cfg,
		manager: manager,
		ws:      NewWsEndpoint(cfg, manager, leases),
		leases:  leases,
		assets:  assets,
	}
}

// Name implements the subsystem registry contract.
func (s *TerminalService) Name() string { return "terminal" }

// Ready reports whether the shell executable exists and a PTY
// allocation smoke-test (open+close) succeeds.
func (s *TerminalService) Ready() bool {
	if !s.cfg.Enabled {
		return true
	}
	if info, err := os.Stat(s.cfg.ShellCommand); err != nil || info.IsDir() {
		return false
	}
	ch, err := Spawn(s.cfg.ShellCommand, nil, Window{Cols: 80, Rows: 24}, s.cfg.exitGrace())
	if err != nil {
		return false
	}
	return ch.Close() == nil
}

// RegisterHTTP mounts the terminal's HTTP surface on the registrar.
func (s *TerminalService) RegisterHTTP(r RouteRegistrar) {
	base := s.cfg.WebPath

	// The catch-all asset route lives under its own /assets segment:
	// gin's httprouter tree panics at registration time if a wildcard
	// (*asset) is a sibling of a static child (ws) under the same node.
	r.GET(base+"/", s.handleIndex)
	r.GET(base+"/ws", func(c *gin.Context) { s.ws.ServeHTTP(c.Writer, c.Request) })
	r.POST(base+"/lease", s.handleMintLease)
	r.GET(base+"/assets/*asset", s.handleAsset)
}

func (s *TerminalService) effectiveCorsOrigin(webServerGlobal string) string {
	if s.CorsOverride != "" {
		return s.CorsOverride
	}
	if s.cfg.CorsOrigin != "" {
		return s.cfg.CorsOrigin
	}
	if webServerGlobal != "" {
		return webServerGlobal
	}
	return "*"
}

func (s *TerminalService) handleIndex(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", s.effectiveCorsOrigin(""))
	data, ct, err := s.assets.Get("/")
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, ct, data)
}

func (s *TerminalService) handleAsset(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", s.effectiveCorsOrigin(""))
	path := strings.TrimPrefix(c.Param("asset"), "/")
	data, ct, err := s.assets.Get(path)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	if len(data) > 1<<20 {
		c.Header("Accept-Ranges", "bytes")
		http.ServeContent(c.Writer, c.Request, path, time.Time{}, newByteReader(data))
		return
	}
	c.Data(http.StatusOK, ct, data)
}

// handleMintLease mints a single-use WS auth lease. Guarded by the
// same shared AuthKey as the WS upgrade itself.
func (s *TerminalService) handleMintLease(c *gin.Context) {
	key := c.GetHeader("Authorization")
	key = strings.TrimPrefix(key, "Key ")
	if key == "" {
		key = c.Query("key")
	}
	if s.cfg.AuthKey != "" && key != s.cfg.AuthKey {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lease": s.leases.Mint()})
}

// Start arms the periodic tick task. It returns SubsystemStartFailed
// if Ready() does not hold, and never leaves a partially spawned PTY
// behind (Ready's smoke-test PTY is always closed before returning).
func (s *TerminalService) Start() error {
	if !s.Ready() {
		return ErrSubsystemStartFailed
	}
	s.stopTick = s.manager.StartTicker(time.Second)
	logrus.Info("terminal service started")
	return nil
}

// Stop drains all sessions (guaranteeing PTY reap) before tearing down
// the tick task.
func (s *TerminalService) Stop() error {
	s.manager.Drain()
	if s.stopTick != nil {
		s.stopTick()
	}
	logrus.Info("terminal service stopped")
	return nil
}

// Manager exposes the session manager for introspection callers (MCP
// tools, health checks).
func (s *TerminalService) Manager() *SessionManager { return s.manager }
