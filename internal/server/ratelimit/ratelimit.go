// Package ratelimit keeps one token bucket per client and route.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info describes the outcome of a rate limit check.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages rate limiters keyed by client, path and method.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  *Config
	done    chan struct{}
	once    sync.Once
}

// NewLimiter creates a limiter and starts its cleanup goroutine.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = NewConfig(1, 5)
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		config:  config,
		done:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupRoutine(config.CleanupInterval)
	}
	return l
}

// Allow checks whether clientID may call method on path now. Denied calls
// consume nothing.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	rps, burst := l.config.DefaultRPS, l.config.DefaultBurst
	key := clientID + ":*"
	if ec := MatchEndpoint(path, method, l.config.EndpointConfigs); ec != nil {
		rps, burst = ec.RPS, ec.Burst
		key = clientID + ":" + method + ":" + ec.Path
	}
	if rps <= 0 {
		return true, Info{Allowed: true}
	}
	if burst <= 0 {
		burst = 1
	}

	now := time.Now()
	e := l.get(key, rps, burst, now)

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
		r.CancelAt(now)
		return false, Info{Limit: burst, RetryAfter: delay}
	}
	return true, Info{
		Allowed:   true,
		Limit:     burst,
		Remaining: int(e.limiter.TokensAt(now)),
	}
}

func (l *Limiter) get(key string, rps float64, burst int, now time.Time) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e
}

// Len reports how many client buckets are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now().Add(-interval))
		case <-l.done:
			return
		}
	}
}

// cleanup drops buckets not used since cutoff.
func (l *Limiter) cleanup(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}
