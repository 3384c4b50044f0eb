package service

import (
	"context"
	"log/slog"
	"sync"
)

// pool fans indexed jobs out to a fixed number of workers.
// Each job writes its own slot, so results keep input order.
type pool struct {
	workers int
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	return &pool{workers: workers}
}

// run calls fn for every index in [0, n). The first error cancels the remaining jobs.
func (p *pool) run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workCh := make(chan int)
	go func() {
		defer close(workCh)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case workCh <- i:
			}
		}
	}()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	wg.Add(p.workers)
	for w := 0; w < p.workers; w++ {
		go func(id int) {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					continue
				}
				if err := fn(ctx, i); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					slog.Debug("Sweep job failed", slog.Int("worker", id), slog.Int("index", i), slog.Any("error", err))
				}
			}
		}(w)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
