package pool

import (
	"context"
	"sync"
)

// WorkerFunc defines the function signature for a worker that processes an item and may return an error.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// MapFunc processes an item and produces a result.
type MapFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Run executes a worker pool. It processes a slice of items concurrently.
// It returns a slice containing any errors that occurred during processing.
func Run[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T]) []error {
	_, errs := Map(ctx, items, numWorkers, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, workerFunc(ctx, item)
	})
	return errs
}

// Map runs fn over items with at most numWorkers in flight. results[i]
// belongs to items[i]; items skipped after cancellation keep the zero value.
// Fewer than one worker is treated as one.
func Map[T, R any](ctx context.Context, items []T, numWorkers int, fn MapFunc[T, R]) ([]R, []error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	type task struct {
		index int
		item  T
	}

	var wg sync.WaitGroup
	taskChan := make(chan task, numWorkers)
	errChan := make(chan error, len(items))
	results := make([]R, len(items))

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				select {
				case <-ctx.Done():
					return
				default:
					r, err := fn(ctx, t.item)
					if err != nil {
						errChan <- err
						continue
					}
					results[t.index] = r
				}
			}
		}()
	}

OUT:
	for i, item := range items {
		select {
		case taskChan <- task{index: i, item: item}:
		case <-ctx.Done():
			// Stop feeding tasks if the context is cancelled
			break OUT
		}
	}
	close(taskChan)

	wg.Wait()
	close(errChan)

	var allErrors []error
	for err := range errChan {
		allErrors = append(allErrors, err)
	}
	return results, allErrors
}
