package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hydrogen-host/terminal/src/handler/terminal"
)

// Build information - set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// SystemHandler reports host-level health, including the readiness
// and live session count of the terminal subsystem.
//
// Grounded on the teacher's SystemHandler (src/handler/system.go):
// same HealthResponse shape (version/gitcommit/buildtime/goversion/
// os/arch/uptime), trimmed of the sandbox-wide restart/keepAlive
// fields which belong to an unrelated subsystem.
type SystemHandler struct {
	*BaseHandler
	terminalService *terminal.TerminalService
}

func NewSystemHandler(terminalService *terminal.TerminalService) *SystemHandler {
	return &SystemHandler{
		BaseHandler:     NewBaseHandler(),
		terminalService: terminalService,
	}
}

// HealthResponse is the response body for the health endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	GitCommit     string  `json:"gitCommit"`
	BuildTime     string  `json:"buildTime"`
	GoVersion     string  `json:"goVersion"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	StartedAt     string  `json:"startedAt"`

	TerminalReady        bool `json:"terminalReady"`
	TerminalLiveSessions int  `json:"terminalLiveSessions"`
} // @name HealthResponse

// HandleHealth handles GET requests to /health
// @Summary Health check
// @Description Returns health status, build information, and terminal subsystem readiness.
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse "Health status"
// @Router /health [get]
func (h *SystemHandler) HandleHealth(c *gin.Context) {
	uptime := time.Since(startTime)

	ready := true
	sessions := 0
	if h.terminalService != nil {
		ready = h.terminalService.Ready()
		sessions = h.terminalService.Manager().Count()
	}

	h.SendJSON(c, http.StatusOK, HealthResponse{
		Status:               "ok",
		Version:              Version,
		GitCommit:            GitCommit,
		BuildTime:            BuildTime,
		GoVersion:            runtime.Version(),
		OS:                   runtime.GOOS,
		Arch:                 runtime.GOARCH,
		Uptime:               uptime.Round(time.Second).String(),
		UptimeSeconds:        uptime.Seconds(),
		StartedAt:            startTime.Format(time.RFC3339),
		TerminalReady:        ready,
		TerminalLiveSessions: sessions,
	})
}
