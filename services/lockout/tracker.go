package lockout

import (
	"strings"
	"sync"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/zap"
)

// Status reports whether a (username, ip) key is locked and for how long.
type Status struct {
	Locked    bool
	Remaining time.Duration
	Failures  int
}

type entry struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
}

// Tracker counts failed logins per (username, ip) in memory. State is local to
// the process and is lost on restart.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry

	maxAttempts     int
	window          time.Duration
	duration        time.Duration
	cleanupInterval time.Duration

	now    func() time.Time
	logger *logging.Service

	stop chan struct{}
	done chan struct{}
}

func NewTracker(cfg config.LockoutConfig, logger *logging.Service) *Tracker {
	return &Tracker{
		entries:         make(map[string]*entry),
		maxAttempts:     cfg.MaxAttempts,
		window:          cfg.Window,
		duration:        cfg.Duration,
		cleanupInterval: cfg.CleanupInterval,
		now:             time.Now,
		logger:          logger,
	}
}

func key(username, ip string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "|" + ip
}

func (t *Tracker) IsLocked(username, ip string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(username, ip)
	e, ok := t.entries[k]
	if !ok {
		return Status{}
	}

	now := t.now()
	if t.expired(e, now) {
		delete(t.entries, k)
		return Status{}
	}
	if now.Before(e.lockedUntil) {
		return Status{Locked: true, Remaining: e.lockedUntil.Sub(now), Failures: e.failures}
	}
	return Status{Failures: e.failures}
}

// RegisterFailure records one failed attempt. The attempt that reaches the
// limit locks the key; attempts made while locked leave the lock unchanged.
func (t *Tracker) RegisterFailure(username, ip string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(username, ip)
	now := t.now()

	e, ok := t.entries[k]
	if ok && now.Before(e.lockedUntil) {
		return Status{Locked: true, Remaining: e.lockedUntil.Sub(now), Failures: e.failures}
	}
	if !ok || t.expired(e, now) {
		e = &entry{windowStart: now}
		t.entries[k] = e
	}

	e.failures++
	if e.failures >= t.maxAttempts {
		e.lockedUntil = now.Add(t.duration)
		if t.logger != nil {
			t.logger.Warn("login locked out",
				zap.String("username", strings.ToLower(username)),
				zap.String("ip", ip),
				zap.Int("failures", e.failures),
				zap.Duration("duration", t.duration))
		}
		return Status{Locked: true, Remaining: t.duration, Failures: e.failures}
	}
	return Status{Failures: e.failures}
}

func (t *Tracker) ClearFailures(username, ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key(username, ip))
}

// expired reports whether an entry no longer affects decisions: its lock has
// ended, or it was never locked and its window has elapsed.
func (t *Tracker) expired(e *entry, now time.Time) bool {
	if !e.lockedUntil.IsZero() {
		return !now.Before(e.lockedUntil)
	}
	return !now.Before(e.windowStart.Add(t.window))
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

func (t *Tracker) sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for k, e := range t.entries {
		if t.expired(e, now) {
			delete(t.entries, k)
			removed++
		}
	}
	return removed
}

// Start runs a janitor that evicts stale entries. Calling Start twice is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil || t.cleanupInterval <= 0 {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.janitor(t.stop, t.done)
}

func (t *Tracker) janitor(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := t.sweep(); n > 0 {
				t.logger.Debug("evicted lockout entries", zap.Int("count", n))
			}
		}
	}
}

func (t *Tracker) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
