package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = c.now
	return l, c
}

func TestAllowConsumesAndRefills(t *testing.T) {
	l, c := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.Equal(t, 20*time.Second, l.RetryAfter("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	c.t = c.t.Add(20 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestRefillIsCapped(t *testing.T) {
	l, c := newTestLimiter(2, time.Second)
	assert.True(t, l.Allow("k"))
	c.t = c.t.Add(time.Hour)
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestSweepDropsIdleKeys(t *testing.T) {
	l, c := newTestLimiter(5, time.Minute)
	l.Allow("old")
	c.t = c.t.Add(3 * time.Minute)
	l.Allow("new")
	l.sweep()
	assert.Equal(t, 1, l.Len())
}
