package terminal

import "time"

// Config is the immutable configuration for the terminal subsystem,
// passed in at construction time. There is no module-level singleton
// (per the spec's design note replacing the original's global
// app-config pointer).
type Config struct {
	Enabled bool

	WebPath string // default "/terminal"
	WebRoot string // default "PAYLOAD:/terminal"

	ShellCommand string // default "/bin/bash"

	MaxSessions        int // default 10
	IdleTimeoutSeconds int // default 600
	MaxSessionSeconds  int // default 3600

	BufferSize int // default 4096

	PingIntervalSeconds int // default 20
	PongTimeoutSeconds  int // default 30
	ExitWaitSeconds     int // default 10
	InputStallSeconds   int // default 5

	WriteHighWatermark int // default 1 MiB
	WriteLowWatermark  int // default 256 KiB

	CorsOrigin string // default "*" (set by WithDefaults; the WebServer's setting is not inherited)

	AuthKey string
	DevMode bool // allows AuthKey == "" to mean "accept anything", dev only
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced
// by the spec's documented defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.WebPath == "" {
		cfg.WebPath = "/terminal"
	}
	if cfg.WebRoot == "" {
		cfg.WebRoot = "PAYLOAD:/terminal"
	}
	if cfg.ShellCommand == "" {
		cfg.ShellCommand = "/bin/bash"
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10
	}
	if cfg.IdleTimeoutSeconds <= 0 {
		cfg.IdleTimeoutSeconds = 600
	}
	if cfg.MaxSessionSeconds <= 0 {
		cfg.MaxSessionSeconds = 3600
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	if cfg.PingIntervalSeconds <= 0 {
		cfg.PingIntervalSeconds = 20
	}
	if cfg.PongTimeoutSeconds <= 0 {
		cfg.PongTimeoutSeconds = 30
	}
	if cfg.ExitWaitSeconds <= 0 {
		cfg.ExitWaitSeconds = 10
	}
	if cfg.InputStallSeconds <= 0 {
		cfg.InputStallSeconds = 5
	}
	if cfg.WriteHighWatermark <= 0 {
		cfg.WriteHighWatermark = 1 << 20
	}
	if cfg.WriteLowWatermark <= 0 {
		cfg.WriteLowWatermark = 256 << 10
	}
	if cfg.CorsOrigin == "" {
		cfg.CorsOrigin = "*"
	}
	return cfg
}

func (cfg Config) exitGrace() time.Duration { return 2 * time.Second }
