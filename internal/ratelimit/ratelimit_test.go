package ratelimit

import (
	"testing"
	"time"
)

func TestKeyedLimiterBurstThenDeny(t *testing.T) {
	kl := New(1, 0, 3)
	now := time.Unix(1000, 0)
	kl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !kl.Allow("a") {
			t.Errorf("Expected request %d to be allowed", i)
		}
	}
	if kl.Allow("a") {
		t.Error("Expected request to be denied when bucket is empty")
	}
	// separate key keeps its own bucket
	if !kl.Allow("b") {
		t.Error("Expected different key to be allowed")
	}

	now = now.Add(1100 * time.Millisecond)
	if !kl.Allow("a") {
		t.Error("Expected request to be allowed after refill")
	}
	if kl.Allow("a") {
		t.Error("Expected second request after one second refill to be denied")
	}
}

func TestKeyedLimiterGlobal(t *testing.T) {
	kl := New(0, 1, 2)
	now := time.Unix(1000, 0)
	kl.now = func() time.Time { return now }

	if !kl.Allow("a") || !kl.Allow("b") {
		t.Error("Expected global burst to be allowed")
	}
	if kl.Allow("c") {
		t.Error("Expected request to be denied due to global limit")
	}
}

func TestKeyedLimiterDisabled(t *testing.T) {
	kl := New(0, 0, 1)
	for i := 0; i < 100; i++ {
		if !kl.Allow("a") {
			t.Errorf("Expected request %d to be allowed when limits disabled", i)
		}
	}
}

func TestKeyedLimiterSweep(t *testing.T) {
	kl := New(1, 0, 1)
	now := time.Unix(1000, 0)
	kl.now = func() time.Time { return now }

	kl.Allow("old")
	now = now.Add(kl.idleTTL + time.Second)
	kl.Allow("fresh")

	if n := kl.Sweep(); n != 1 {
		t.Errorf("Expected 1 bucket swept, got %d", n)
	}
	if _, ok := kl.perKey["fresh"]; !ok {
		t.Error("Expected fresh bucket to remain")
	}
	if _, ok := kl.perKey["old"]; ok {
		t.Error("Expected old bucket to be removed")
	}
}
