package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow and DefaultLimit match the network's admission policy:
	// 10 requests per identity per minute.
	DefaultWindow = time.Minute
	DefaultLimit  = 10
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int64
	// ResetIn is the number of seconds until the identity's window expires.
	ResetIn int64
}

type window struct {
	count   int64
	resetAt time.Time
}

// Limiter admits up to limit calls per identity per fixed window. Windows
// reset lazily on the first call after expiry; state is process-local and not
// persisted, so a restart clears all counters.
type Limiter struct {
	mu      sync.Mutex
	limit   int64
	window  time.Duration
	entries map[string]*window
	now     func() time.Time
}

// New builds a limiter with the given per-window capacity. Non-positive
// arguments fall back to the defaults.
func New(limit int64, windowLen time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if windowLen <= 0 {
		windowLen = DefaultWindow
	}
	return &Limiter{
		limit:   limit,
		window:  windowLen,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

// Admit records one call for the identity and reports whether it is within
// the window's capacity. It must be checked before any ledger mutation.
func (l *Limiter) Admit(identity string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.entries[identity]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.entries[identity] = w
	}

	w.count++

	remaining := l.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	resetIn := int64((w.resetAt.Sub(now) + time.Second - 1) / time.Second)

	return Decision{
		Allowed:   w.count <= l.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}
