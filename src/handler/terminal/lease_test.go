package terminal

import "testing"

func TestLeaseConsumeOnce(t *testing.T) {
	s := NewLeaseStore()
	token := s.Mint()

	if !s.Consume(token) {
		t.Fatal("first consume of a fresh lease should succeed")
	}
	if s.Consume(token) {
		t.Fatal("second consume of the same lease should fail (single-use)")
	}
}

func TestLeaseUnknownTokenRejected(t *testing.T) {
	s := NewLeaseStore()
	if s.Consume("not-a-real-token") {
		t.Fatal("consuming an unminted token should fail")
	}
}
