package ratelimit

import "time"

// SenderRateLimit allows MaxRequests submissions per Window, with bursts
// up to MaxRequests. Zero values mean no limit.
type SenderRateLimit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// Enabled reports whether the limit restricts anything.
func (l *SenderRateLimit) Enabled() bool {
	return l != nil && l.MaxRequests > 0 && l.Window > 0
}

// RateLimitConfig maps sender addresses (hex) to their limits. The "*"
// entry applies to every sender without one of its own.
type RateLimitConfig map[string]*SenderRateLimit

// HasLimits returns true if any sender has a configured limit.
func (c RateLimitConfig) HasLimits() bool {
	for _, l := range c {
		if l.Enabled() {
			return true
		}
	}
	return false
}

// For returns the limit that applies to sender, nil when unlimited.
// Lookup order: c[sender] -> c["*"].
func (c RateLimitConfig) For(sender string) *SenderRateLimit {
	if l, ok := c[sender]; ok {
		return l
	}
	return c["*"]
}
