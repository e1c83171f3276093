// Package util holds small generic helpers.
package util

import (
	"context"
	"errors"
	"sync"
)

// Parallel runs fn for every input with at most workerLimit calls in flight.
// Every input is attempted unless ctx is cancelled, and all failures are
// joined into the returned error.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}

	tasks := make(chan T)
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for range min(workerLimit, len(inputs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if err := fn(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, item := range inputs {
		select {
		case <-ctx.Done():
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()
			break feed
		case tasks <- item:
		}
	}
	close(tasks)
	wg.Wait()
	return errors.Join(errs...)
}
