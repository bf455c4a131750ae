package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	policy := DefaultConnectionPolicy()

	assert.Equal(t, 200*time.Millisecond, policy.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, policy.Backoff(2))
	assert.Equal(t, 800*time.Millisecond, policy.Backoff(3))
	assert.Equal(t, 5*time.Second, policy.Backoff(10))
	assert.Equal(t, 5*time.Second, policy.Backoff(1000))
	assert.Zero(t, policy.Backoff(0))

	previous := time.Duration(0)
	for n := 1; n <= 50; n++ {
		delay := policy.Backoff(n)
		assert.GreaterOrEqual(t, delay, previous)
		previous = delay
	}
}

func TestBackoffNormalizesBadPolicy(t *testing.T) {
	policy := ConnectionPolicy{MaxAttempts: -1, BackoffInitial: time.Second, BackoffMultiplier: 0.5, BackoffMax: time.Millisecond}

	normalized := policy.normalized()
	assert.Equal(t, 5, normalized.MaxAttempts)
	assert.Equal(t, time.Second, normalized.BackoffMax)
	assert.Equal(t, time.Second, policy.Backoff(3))
}
