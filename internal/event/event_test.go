package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	assert.Equal(t, "asset-progress", Event{Kind: CategoryTick, Category: "asset"}.Name())
	assert.Equal(t, "done", Event{Kind: Done}.Name())
	assert.Equal(t, "category-progress", Event{Kind: CategoryTick}.Name())
}

func TestNilSinkEmit(t *testing.T) {
	var s Sink
	assert.NotPanics(t, func() { s.Emit(Event{Kind: Done}) })
}

func TestRecorderConcurrent(t *testing.T) {
	var rec Recorder
	sink := Serialize(rec.Sink())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink(Event{Kind: Data})
		}()
	}
	wg.Wait()
	sink(Event{Kind: Close, Code: 3})

	assert.Equal(t, 50, rec.Count(Data))
	last, ok := rec.Last(Close)
	assert.True(t, ok)
	assert.Equal(t, 3, last.Code)

	_, ok = rec.Last(Error)
	assert.False(t, ok)
}
