// Package parallel provides the fan-out helpers shared by design matrix
// construction, cross-validation and the bootstrap.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallelize divides items into contiguous ranges, one per CPU core, and
// runs fn on each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items
// does not exceed threshold, and in parallel otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Workers normalizes a requested worker count: values below one mean one
// worker per CPU core.
func Workers(requested int) int {
	if requested < 1 {
		return runtime.NumCPU()
	}
	return requested
}

// ForEach calls fn for every index in [0, n) with at most workers calls in
// flight. Indices are scheduled in order. When fn returns an error the shared
// context is cancelled, no further index is scheduled, and the first error is
// returned once the running calls have finished.
//
// Cancellation of ctx returns ctx.Err() immediately. Calls that are still
// running are not waited for: fn must stop on its own when its context is
// done, and must not touch results the caller reads after an error.
//
// fn owns index i exclusively; callers write results into index-aligned
// slots so the outcome does not depend on execution order.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))

	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if gctx.Err() != nil {
				break
			}
			// 空きがなければここでブロックする
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return fn(gctx, i)
			})
		}
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		// a cancellation that raced with the last scheduled call
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
