package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAdmitsUpToCapacity(t *testing.T) {
	l := New(10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		d := l.Admit("agent-a")
		if !d.Allowed {
			t.Fatalf("call %d unexpectedly denied", i+1)
		}
		if want := int64(10 - i - 1); d.Remaining != want {
			t.Fatalf("call %d remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	d := l.Admit("agent-a")
	if d.Allowed {
		t.Fatal("11th call within the window was admitted")
	}
	if d.Remaining != 0 {
		t.Fatalf("denied call remaining = %d, want 0", d.Remaining)
	}
	if d.ResetIn <= 0 || d.ResetIn > 60 {
		t.Fatalf("denied call resetIn = %d, want within (0, 60]", d.ResetIn)
	}
}

func TestLimiterIsolatesIdentities(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	if d := l.Admit("agent-a"); !d.Allowed {
		t.Fatal("first call for agent-a denied")
	}
	if d := l.Admit("agent-a"); d.Allowed {
		t.Fatal("second call for agent-a admitted")
	}
	if d := l.Admit("agent-b"); !d.Allowed {
		t.Fatal("agent-b throttled by agent-a's window")
	}
}

func TestLimiterResetsLazily(t *testing.T) {
	l := New(2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Admit("agent-a")
	l.Admit("agent-a")
	if d := l.Admit("agent-a"); d.Allowed {
		t.Fatal("over-capacity call admitted")
	}

	now = now.Add(61 * time.Second)
	d := l.Admit("agent-a")
	if !d.Allowed {
		t.Fatal("call after window expiry denied")
	}
	if d.Remaining != 1 {
		t.Fatalf("fresh window remaining = %d, want 1", d.Remaining)
	}
}
