// Package ratelimit throttles callers by key, backing each key with its own
// golang.org/x/time/rate token bucket.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter grants each key limit events per window, refilled continuously,
// with bursts of up to limit.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	every    rate.Limit
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// New creates a Limiter and starts its stale-entry sweeper. Call Close to
// stop the sweeper. A non-positive limit rejects everything.
func New(limit int, window time.Duration) *Limiter {
	every := rate.Limit(0)
	if limit > 0 && window > 0 {
		every = rate.Every(window / time.Duration(limit))
	}
	l := &Limiter{
		limiters: make(map[string]*keyLimiter),
		every:    every,
		limit:    max(limit, 0),
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow consumes one event for key and reports whether it was permitted.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	return l.get(key, now).AllowN(now, 1)
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl, ok := l.limiters[key]; ok {
		kl.lastSeen = now
		return kl.limiter
	}
	lim := rate.NewLimiter(l.every, l.limit)
	l.limiters[key] = &keyLimiter{limiter: lim, lastSeen: now}
	return lim
}

// Window returns the refill window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Close stops the sweeper.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep forgets keys idle for two windows; by then their bucket is full again.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, kl := range l.limiters {
		if kl.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}
