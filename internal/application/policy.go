package application

import (
	"math"
	"time"
)

type ConnectionPolicy struct {
	MaxAttempts       int
	BackoffInitial    time.Duration
	BackoffMultiplier float64
	BackoffMax        time.Duration
}

func DefaultConnectionPolicy() ConnectionPolicy {
	return ConnectionPolicy{
		MaxAttempts:       5,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMultiplier: 2,
		BackoffMax:        5 * time.Second,
	}
}

func (p ConnectionPolicy) normalized() ConnectionPolicy {
	defaults := DefaultConnectionPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.BackoffInitial < 0 {
		p.BackoffInitial = 0
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 1
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = defaults.BackoffMax
	}
	if p.BackoffMax < p.BackoffInitial {
		p.BackoffMax = p.BackoffInitial
	}
	return p
}

// Backoff returns the wait before retry number n (n >= 1). The sequence never
// decreases.
func (p ConnectionPolicy) Backoff(n int) time.Duration {
	p = p.normalized()
	if n < 1 {
		return 0
	}

	delay := float64(p.BackoffInitial) * math.Pow(p.BackoffMultiplier, float64(n-1))
	if delay > float64(p.BackoffMax) || math.IsInf(delay, 0) {
		return p.BackoffMax
	}
	return time.Duration(delay)
}

type SessionPolicy struct {
	// TurnTimeout bounds one turn from send to terminal frame; zero disables it.
	TurnTimeout time.Duration
	// StallTimeout is how long a link may stay silent during a turn before a
	// turn timeout is blamed on the transport instead of a slow backend.
	StallTimeout time.Duration
}

func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		TurnTimeout:  2 * time.Minute,
		StallTimeout: 30 * time.Second,
	}
}
