// Package progress accounts downloaded bytes per category for one
// orchestration run and derives percentages, throughput and ETA from them.
package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"mclaunch/internal/event"
)

// Category partitions the accounting of an orchestration run.
type Category string

const (
	Runtime Category = "runtime"
	Library Category = "library"
	Native  Category = "native"
	Asset   Category = "asset"
	Package Category = "package"
)

// Categories lists every category in pipeline order.
var Categories = []Category{Runtime, Library, Native, Asset, Package}

// Totals is the accounting of one category.
type Totals struct {
	Total      int64
	Downloaded int64
}

func (t Totals) done() int64 {
	if t.Total > 0 && t.Downloaded > t.Total {
		return t.Total
	}
	return t.Downloaded
}

// Snapshot is a consistent view of the aggregator at one instant.
type Snapshot struct {
	Categories map[Category]Totals
	Elapsed    time.Duration
	ETA        time.Duration
	Percent    float64
}

type registration struct {
	category Category
	size     int64
	credited bool
}

// Aggregator is owned by a single orchestration run and shared by reference
// with its transfers. All methods are safe for concurrent use.
type Aggregator struct {
	mu          sync.Mutex
	totals      map[Category]*Totals
	urls        map[string]*registration
	transferred int64
	lastPercent float64
	start       time.Time

	interval time.Duration
	now      func() time.Time
}

type Option func(*Aggregator)

// WithClock replaces time.Now, used to make ETA computations deterministic.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithInterval sets the tick period. Default: 500ms.
func WithInterval(d time.Duration) Option {
	return func(a *Aggregator) { a.interval = d }
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		interval: 500 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a
}

// Reset clears every counter and restarts the elapsed clock. It is called
// once at the beginning of each orchestration run.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totals = make(map[Category]*Totals, len(Categories))
	for _, c := range Categories {
		a.totals[c] = &Totals{}
	}
	a.urls = make(map[string]*registration)
	a.transferred = 0
	a.lastPercent = 0
	a.start = a.now()
}

func (a *Aggregator) category(c Category) *Totals {
	t, ok := a.totals[c]
	if !ok {
		t = &Totals{}
		a.totals[c] = t
	}
	return t
}

// Register adds size to the category total the first time url is seen.
// Registering the same url again is a no-op, except that a known size
// replaces an earlier unknown (zero) one.
func (a *Aggregator) Register(c Category, url string, size int64) {
	if size < 0 {
		size = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.urls[url]; ok {
		if r.size == 0 && size > 0 {
			r.size = size
			a.category(r.category).Total += size
		}
		return
	}
	a.urls[url] = &registration{category: c, size: size}
	a.category(c).Total += size
}

// Add records delta transferred bytes. A negative delta rolls back the
// bytes of a failed attempt before it is retried.
func (a *Aggregator) Add(c Category, delta int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.category(c)
	t.Downloaded += delta
	if t.Downloaded < 0 {
		t.Downloaded = 0
	}
	a.transferred += delta
	if a.transferred < 0 {
		a.transferred = 0
	}
}

// Skip credits the registered size of url as complete without counting it
// towards throughput. It is used for files that are already present.
func (a *Aggregator) Skip(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.urls[url]
	if !ok || r.credited {
		return
	}
	r.credited = true
	a.category(r.category).Downloaded += r.size
}

// Percent returns the completion of one category in [0,100]; 0 when its
// total is unknown.
func (a *Aggregator) Percent(c Category) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.category(c)
	if t.Total <= 0 {
		return 0
	}
	return float64(t.done()) / float64(t.Total) * 100
}

// Overall returns the global completion across all categories. The value
// never decreases within a run and never exceeds 100.
func (a *Aggregator) Overall() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overallLocked()
}

func (a *Aggregator) overallLocked() float64 {
	var total, done int64
	for _, t := range a.totals {
		total += t.Total
		done += t.done()
	}
	p := 0.0
	if total > 0 {
		p = float64(done) / float64(total) * 100
	}
	if p > 100 {
		p = 100
	}
	if p < a.lastPercent {
		p = a.lastPercent
	}
	a.lastPercent = p
	return p
}

// Snapshot returns the current accounting with elapsed time and ETA. The
// ETA is remaining bytes divided by the average rate since the run started;
// it is zero when nothing has been transferred or the total is unknown.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{Categories: make(map[Category]Totals, len(a.totals))}
	var total, done int64
	for c, t := range a.totals {
		s.Categories[c] = *t
		total += t.Total
		done += t.done()
	}
	s.Elapsed = a.now().Sub(a.start)
	s.Percent = a.overallLocked()

	seconds := s.Elapsed.Seconds()
	if total > 0 && a.transferred > 0 && seconds > 0 {
		rate := float64(a.transferred) / seconds
		remaining := total - done
		if remaining > 0 {
			s.ETA = time.Duration(float64(remaining) / rate * float64(time.Second))
		}
	}
	return s
}

// Emit publishes one tick: elapsed time, ETA and one category-scoped event
// per category with a known total.
func (a *Aggregator) Emit(sink event.Sink) {
	s := a.Snapshot()
	sink.Emit(event.Event{Kind: event.ProgressTime, Duration: s.Elapsed, Percent: s.Percent})
	sink.Emit(event.Event{Kind: event.EstimatedTime, Duration: s.ETA, Percent: s.Percent})

	cats := make([]Category, 0, len(s.Categories))
	for c, t := range s.Categories {
		if t.Total > 0 {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	for _, c := range cats {
		t := s.Categories[c]
		sink.Emit(event.Event{
			Kind:     event.CategoryTick,
			Category: string(c),
			Percent:  float64(t.done()) / float64(t.Total) * 100,
		})
	}
}

// Start emits a tick every interval until the returned stop function is
// called or ctx is done. Stop blocks until the ticking goroutine exits, so
// no tick is delivered after it returns.
func (a *Aggregator) Start(ctx context.Context, sink event.Sink) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Emit(sink)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
