// Package lifecycle implements the host's subsystem registry: ordered
// launch (startup) and landing (shutdown) of the services that make
// up the process, with strict dependency ordering and no
// reinitialization once landing has begun.
package lifecycle

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Subsystem is the standard contract every registry member
// implements: readiness probing, start, stop, and a name for logs.
//
// Grounded on the teacher's LifecycleHandler (src/handler/lifecycle.go)
// for the mutex-guarded-state idiom (kept), with entirely new
// semantics: the teacher's type tracks sandbox-wide keepAlive/awake
// state, unrelated to ordered subsystem startup.
type Subsystem interface {
	Name() string
	Ready() bool
	Start() error
	Stop() error
}

// ErrSubsystemStartFailed is returned by Registry.Launch when a
// subsystem's Ready() check fails before Start is attempted, or when
// its Start returns an error.
type ErrSubsystemStartFailed struct {
	Subsystem string
	Err       error
}

func (e *ErrSubsystemStartFailed) Error() string {
	return fmt.Sprintf("subsystem %q failed to start: %v", e.Subsystem, e.Err)
}
func (e *ErrSubsystemStartFailed) Unwrap() error { return e.Err }

// Registry holds subsystems in dependency order (leaves first) and
// drives launch forward / landing in reverse, exactly mirroring the
// spec's Registry -> Network -> WebSocket host -> TerminalService
// control flow.
type Registry struct {
	mu         sync.Mutex
	subsystems []Subsystem
	started    []Subsystem // subset of subsystems that completed Start, in start order
	landing    bool
}

func NewRegistry() *Registry { return &Registry{} }

// Register appends a subsystem to the end of the dependency order.
// Registration is not permitted once landing has begun.
func (r *Registry) Register(s Subsystem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.landing {
		return fmt.Errorf("registry: cannot register %q during landing", s.Name())
	}
	r.subsystems = append(r.subsystems, s)
	return nil
}

// Launch starts every registered subsystem in registration order. If
// any subsystem is not Ready() or fails to Start, Launch stops the
// subsystems it already started (reverse order) and returns
// ErrSubsystemStartFailed. Launch is refused once landing has begun.
func (r *Registry) Launch() error {
	r.mu.Lock()
	if r.landing {
		r.mu.Unlock()
		return fmt.Errorf("registry: cannot launch during landing")
	}
	subsystems := append([]Subsystem(nil), r.subsystems...)
	r.mu.Unlock()

	for _, s := range subsystems {
		if !s.Ready() {
			logrus.WithField("subsystem", s.Name()).Error("subsystem not ready, aborting launch")
			r.unwind()
			return &ErrSubsystemStartFailed{Subsystem: s.Name(), Err: fmt.Errorf("not ready")}
		}
		if err := s.Start(); err != nil {
			logrus.WithField("subsystem", s.Name()).WithError(err).Error("subsystem failed to start")
			r.unwind()
			return &ErrSubsystemStartFailed{Subsystem: s.Name(), Err: err}
		}
		r.mu.Lock()
		r.started = append(r.started, s)
		r.mu.Unlock()
		logrus.WithField("subsystem", s.Name()).Info("subsystem started")
	}
	return nil
}

func (r *Registry) unwind() {
	r.mu.Lock()
	started := append([]Subsystem(nil), r.started...)
	r.started = nil
	r.mu.Unlock()
	for i := len(started) - 1; i >= 0; i-- {
		_ = started[i].Stop()
	}
}

// Land stops every started subsystem in reverse order. It is safe to
// call even if Launch partially failed. Once Land begins, no further
// Register calls are accepted.
func (r *Registry) Land() error {
	r.mu.Lock()
	r.landing = true
	started := append([]Subsystem(nil), r.started...)
	r.started = nil
	r.mu.Unlock()

	var firstErr error
	for i := len(started) - 1; i >= 0; i-- {
		s := started[i]
		if err := s.Stop(); err != nil {
			logrus.WithField("subsystem", s.Name()).WithError(err).Error("subsystem failed to stop")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logrus.WithField("subsystem", s.Name()).Info("subsystem stopped")
	}
	return firstErr
}
