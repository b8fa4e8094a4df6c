package ratelimit

import (
	"errors"
	"testing"
)

func TestUnlimitedMode(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 1000; i++ {
		if err := l.Allow("ci"); err != nil {
			t.Fatalf("Allow in unlimited mode: %v", err)
		}
	}
}

func TestBurstExhaustion(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if err := l.Allow("ci"); err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
	}
	if err := l.Allow("ci"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Allow after burst = %v, want ErrRateLimited", err)
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, BurstSize: 1})

	if err := l.Allow("alice"); err != nil {
		t.Fatalf("alice first: %v", err)
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("alice second = %v, want ErrRateLimited", err)
	}
	// A different client still has a full bucket.
	if err := l.Allow("bob"); err != nil {
		t.Errorf("bob first: %v", err)
	}
}

func TestBurstDefaultsToRate(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2})
	if l.burst != 2 {
		t.Errorf("burst = %v, want 2", l.burst)
	}
}
