package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded bool
	Sender   string
	Limit    int
	Window   time.Duration
	Reason   string
}

// Limiter keeps one token bucket per sender.
type Limiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Limiter. A nil or empty config allows everything.
func New(cfg RateLimitConfig) *Limiter {
	norm := make(RateLimitConfig, len(cfg))
	for k, v := range cfg {
		norm[strings.ToLower(k)] = v
	}
	return &Limiter{cfg: norm, limiters: make(map[string]*rate.Limiter)}
}

// Allow takes one token from sender's bucket at now.
func (l *Limiter) Allow(sender string, now time.Time) CheckResult {
	sender = strings.ToLower(sender)
	limit := l.cfg.For(sender)
	if !limit.Enabled() {
		return CheckResult{}
	}

	l.mu.Lock()
	lim, ok := l.limiters[sender]
	if !ok {
		lim = rate.NewLimiter(rate.Every(limit.Window/time.Duration(limit.MaxRequests)), limit.MaxRequests)
		l.limiters[sender] = lim
	}
	l.mu.Unlock()

	if lim.AllowN(now, 1) {
		return CheckResult{}
	}
	return CheckResult{
		Exceeded: true,
		Sender:   sender,
		Limit:    limit.MaxRequests,
		Window:   limit.Window,
		Reason: fmt.Sprintf("rate limit exceeded: %d requests per %s for %s",
			limit.MaxRequests, limit.Window, sender),
	}
}

// Reset drops all buckets, e.g. after a config reload.
func (l *Limiter) Reset(cfg RateLimitConfig) {
	fresh := New(cfg)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = fresh.cfg
	l.limiters = fresh.limiters
}
