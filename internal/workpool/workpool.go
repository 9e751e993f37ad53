// Package workpool runs independent jobs with bounded parallelism.
package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	LibraryLimit = 8
	AssetLimit   = 16
	NativeLimit  = 1
)

// Run calls job for every item with at most limit calls in flight. A failing
// job never stops its siblings; every failure is collected and returned.
// Items not yet started when ctx is cancelled are recorded with ctx.Err().
func Run[T any](ctx context.Context, items []T, limit int, job func(context.Context, T) error) []error {
	if limit < 1 {
		limit = 1
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range items {
		if ctx.Err() != nil {
			record(ctx.Err())
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				record(ctx.Err())
				return nil
			}
			if err := job(ctx, item); err != nil {
				record(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}
