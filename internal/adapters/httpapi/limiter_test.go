package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterPool_PerKeyBuckets(t *testing.T) {
	p := newLimiterPool(0.001, 2)
	defer p.Stop()

	assert.True(t, p.Allow("alice"))
	assert.True(t, p.Allow("alice"))
	assert.False(t, p.Allow("alice"), "burst exhausted")
	assert.True(t, p.Allow("bob"), "separate bucket")
}

func TestLimiterPool_Defaults(t *testing.T) {
	p := newLimiterPool(0, 0)
	defer p.Stop()

	assert.Equal(t, defaultLimiterBurst, p.burst)
	assert.InDelta(t, defaultLimiterRPS, float64(p.rps), 0.0001)
}

func TestLimiterPool_EvictsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newLimiterPool(1, 1)
	defer p.Stop()
	p.now = func() time.Time { return now }

	p.Allow("alice")
	now = now.Add(5 * time.Minute)
	p.Allow("bob")
	now = now.Add(6 * time.Minute)

	p.evictIdle()

	assert.Equal(t, 1, p.size(), "only the recently seen key survives")
}
