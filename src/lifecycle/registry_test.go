package lifecycle

import (
	"errors"
	"testing"
)

type fakeSubsystem struct {
	name      string
	readyOK   bool
	startErr  error
	started   bool
	stopped   bool
	stopOrder *[]string
}

func (s *fakeSubsystem) Name() string  { return s.name }
func (s *fakeSubsystem) Ready() bool   { return s.readyOK }
func (s *fakeSubsystem) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}
func (s *fakeSubsystem) Stop() error {
	s.stopped = true
	if s.stopOrder != nil {
		*s.stopOrder = append(*s.stopOrder, s.name)
	}
	return nil
}

func TestLaunchStartsInOrderAndLandStopsInReverse(t *testing.T) {
	var order []string
	a := &fakeSubsystem{name: "a", readyOK: true, stopOrder: &order}
	b := &fakeSubsystem{name: "b", readyOK: true, stopOrder: &order}

	r := NewRegistry()
	if err := r.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}

	if err := r.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if !a.started || !b.started {
		t.Fatal("expected both subsystems started")
	}

	if err := r.Land(); err != nil {
		t.Fatalf("land: %v", err)
	}
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("stop order = %v, want [b a]", order)
	}
}

func TestLaunchUnwindsOnFailure(t *testing.T) {
	a := &fakeSubsystem{name: "a", readyOK: true}
	failErr := errors.New("boom")
	b := &fakeSubsystem{name: "b", readyOK: true, startErr: failErr}

	r := NewRegistry()
	r.Register(a)
	r.Register(b)

	err := r.Launch()
	if err == nil {
		t.Fatal("expected launch to fail")
	}
	if !a.stopped {
		t.Fatal("expected already-started subsystem a to be unwound on failure")
	}
}

func TestRegisterAfterLandingRejected(t *testing.T) {
	r := NewRegistry()
	a := &fakeSubsystem{name: "a", readyOK: true}
	r.Register(a)
	r.Launch()
	r.Land()

	if err := r.Register(&fakeSubsystem{name: "late", readyOK: true}); err == nil {
		t.Fatal("expected Register after Land to be rejected")
	}
}

func TestLaunchRejectsNotReady(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeSubsystem{name: "a", readyOK: false})

	if err := r.Launch(); err == nil {
		t.Fatal("expected launch to fail when a subsystem is not ready")
	}
}
