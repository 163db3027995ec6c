package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*MemoryLimiter, *clock) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := NewMemory()
	l.now = c.now
	return l, c
}

func TestMemoryLimiterWindow(t *testing.T) {
	l, _ := newTestLimiter()
	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("vote:1.2.3.4", 3, time.Minute)
		assert.True(t, ok, "request %d", i)
	}
	ok, retry := l.Allow("vote:1.2.3.4", 3, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = l.Allow("vote:5.6.7.8", 3, time.Minute)
	assert.True(t, ok, "keys are limited independently")
}

func TestMemoryLimiterResets(t *testing.T) {
	l, c := newTestLimiter()
	ok, _ := l.Allow("k", 1, time.Minute)
	assert.True(t, ok)
	c.advance(30 * time.Second)
	ok, retry := l.Allow("k", 1, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, retry)

	c.advance(31 * time.Second)
	ok, _ = l.Allow("k", 1, time.Minute)
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	l, c := newTestLimiter()
	l.Allow("a", 1, time.Minute)
	l.Allow("b", 1, 2*time.Minute)
	c.advance(90 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.size())
}

func TestRunStopsOnCancel(t *testing.T) {
	l := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRule(t *testing.T) {
	assert.True(t, PerMinute(5).Enabled())
	assert.False(t, PerMinute(0).Enabled())
}
