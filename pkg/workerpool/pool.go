package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Task is a unit of work executed by the pool.
type Task func(ctx context.Context) error

// DefaultSize returns the default worker count, capped so a large host
// does not overwhelm downstream databases.
func DefaultSize() int {
	n := 2 * runtime.NumCPU()
	if n > 32 {
		n = 32
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Run executes tasks across at most workers goroutines. The returned
// slice is index-aligned with tasks; a nil entry means the task
// succeeded. A panicking task is converted into an error and never
// takes down its worker.
func Run(ctx context.Context, workers int, tasks []Task) []error {
	if workers <= 0 {
		workers = DefaultSize()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				errs[idx] = runTask(ctx, tasks[idx])
			}
		}()
	}

	for i := range tasks {
		select {
		case jobs <- i:
		case <-ctx.Done():
			errs[i] = ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return errs
}

// RunScoped executes tasks like Run, but each worker acquires its own
// resource before processing and releases it when the worker exits.
// Tasks never share a resource with a concurrently running task.
func RunScoped[T any](
	ctx context.Context,
	workers int,
	acquire func(ctx context.Context) (T, func(), error),
	tasks []func(ctx context.Context, res T) error,
) []error {
	if workers <= 0 {
		workers = DefaultSize()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, release, err := acquire(ctx)
			if err != nil {
				for idx := range jobs {
					errs[idx] = fmt.Errorf("acquire worker resource: %w", err)
				}
				return
			}
			if release != nil {
				defer release()
			}

			for idx := range jobs {
				errs[idx] = runScopedTask(ctx, tasks[idx], res)
			}
		}()
	}

	for i := range tasks {
		select {
		case jobs <- i:
		case <-ctx.Done():
			errs[i] = ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return errs
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx)
}

func runScopedTask[T any](ctx context.Context, task func(context.Context, T) error, res T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx, res)
}
