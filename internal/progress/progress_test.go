package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mclaunch/internal/event"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegisterIdempotentPerURL(t *testing.T) {
	a := New()
	a.Register(Library, "https://x/a.jar", 100)
	a.Register(Library, "https://x/a.jar", 100)
	a.Register(Library, "https://x/b.jar", 50)

	s := a.Snapshot()
	assert.Equal(t, int64(150), s.Categories[Library].Total)
}

func TestRegisterUpgradesUnknownSize(t *testing.T) {
	a := New()
	a.Register(Asset, "u", 0)
	a.Register(Asset, "u", 40)
	a.Register(Asset, "u", 90)

	assert.Equal(t, int64(40), a.Snapshot().Categories[Asset].Total)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		added int64
		want  float64
	}{
		{name: "unknown total", total: 0, added: 10, want: 0},
		{name: "half", total: 200, added: 100, want: 50},
		{name: "overshoot is capped", total: 100, added: 250, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			a.Register(Asset, "u", tt.total)
			a.Add(Asset, tt.added)
			assert.InDelta(t, tt.want, a.Percent(Asset), 0.001)
		})
	}
}

func TestOverallMonotonic(t *testing.T) {
	a := New()
	a.Register(Library, "a", 100)
	a.Add(Library, 100)
	require.InDelta(t, 100, a.Overall(), 0.001)

	// a late registration grows the total; the reported value must not drop
	a.Register(Asset, "b", 100)
	assert.InDelta(t, 100, a.Overall(), 0.001)

	a.Add(Library, -50)
	assert.InDelta(t, 100, a.Overall(), 0.001)
}

func TestOverallNeverExceeds100(t *testing.T) {
	a := New()
	a.Register(Package, "p", 10)
	a.Add(Package, 1000)
	assert.LessOrEqual(t, a.Overall(), 100.0)
}

func TestSkipCreditsWithoutThroughput(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	a := New(WithClock(clock.Now))
	a.Register(Asset, "a", 100)
	a.Register(Asset, "b", 100)

	a.Skip("a")
	a.Skip("a")
	assert.InDelta(t, 50, a.Percent(Asset), 0.001)

	clock.Advance(time.Second)
	s := a.Snapshot()
	assert.Zero(t, s.ETA, "no bytes transferred yet")
}

func TestETA(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	a := New(WithClock(clock.Now))
	a.Register(Library, "a", 1000)

	clock.Advance(2 * time.Second)
	a.Add(Library, 200)

	s := a.Snapshot()
	assert.Equal(t, 2*time.Second, s.Elapsed)
	// 100 B/s, 800 B remaining
	assert.Equal(t, 8*time.Second, s.ETA)
}

func TestResetClearsRun(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	a := New(WithClock(clock.Now))
	a.Register(Library, "a", 10)
	a.Add(Library, 10)
	require.InDelta(t, 100, a.Overall(), 0.001)

	clock.Advance(time.Minute)
	a.Reset()

	s := a.Snapshot()
	assert.Zero(t, s.Elapsed)
	assert.Zero(t, s.Percent)
	a.Register(Library, "a", 10)
	assert.Equal(t, int64(10), a.Snapshot().Categories[Library].Total)
}

func TestConcurrentAdd(t *testing.T) {
	a := New()
	a.Register(Asset, "a", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Add(Asset, 10)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), a.Snapshot().Categories[Asset].Downloaded)
}

func TestEmitTick(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	a := New(WithClock(clock.Now))
	a.Register(Library, "a", 100)
	a.Register(Asset, "b", 100)
	a.Add(Asset, 25)
	clock.Advance(time.Second)

	var rec event.Recorder
	a.Emit(rec.Sink())

	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, event.ProgressTime, events[0].Kind)
	assert.Equal(t, time.Second, events[0].Duration)
	assert.Equal(t, event.EstimatedTime, events[1].Kind)
	assert.Equal(t, "asset-progress", events[2].Name())
	assert.InDelta(t, 25, events[2].Percent, 0.001)
	assert.Equal(t, "library-progress", events[3].Name())
}

func TestStartStop(t *testing.T) {
	a := New(WithInterval(5 * time.Millisecond))
	var rec event.Recorder

	stop := a.Start(context.Background(), rec.Sink())
	assert.Eventually(t, func() bool {
		return rec.Count(event.ProgressTime) >= 2
	}, time.Second, 5*time.Millisecond)
	stop()
	stop()

	n := rec.Count(event.ProgressTime)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.Count(event.ProgressTime), "no tick after stop")
}
