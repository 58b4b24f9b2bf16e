package terminal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// leaseTTL is how long a minted lease token remains valid if unused.
// Grounded on the eenlars-alive WS handler's WSLease pattern, which
// addresses the spec's open question about the shared AuthKey being
// single-use or rotated: a lease is a one-time credential minted from
// an already-authenticated request and consumed exactly once.
const leaseTTL = 90 * time.Second

type lease struct {
	expiresAt time.Time
}

// LeaseStore mints and consumes single-use WebSocket auth leases.
type LeaseStore struct {
	mu     sync.Mutex
	leases map[string]lease
}

func NewLeaseStore() *LeaseStore {
	return &LeaseStore{leases: make(map[string]lease)}
}

// Mint creates a new lease token valid for leaseTTL.
func (s *LeaseStore) Mint() string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.leases[token] = lease{expiresAt: time.Now().Add(leaseTTL)}
	return token
}

// Consume validates and deletes a lease token. A token is removed on
// first lookup regardless of whether it was still valid, so replay
// attempts always fail even within the TTL window.
func (s *LeaseStore) Consume(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[token]
	delete(s.leases, token)
	if !ok {
		return false
	}
	return time.Now().Before(l.expiresAt)
}

func (s *LeaseStore) pruneLocked() {
	now := time.Now()
	for token, l := range s.leases {
		if now.After(l.expiresAt) {
			delete(s.leases, token)
		}
	}
}
