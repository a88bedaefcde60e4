// Package fanout distributes independent work items over a fixed pool of
// workers and merges their results.
//
// Each item is handled by exactly one worker. Workers share no mutable state:
// they receive items from a bounded queue and send finished results to the
// coordinator, which is the only goroutine that appends to the merged batch.
// A failing item never stops the others; its error is returned alongside the
// merged results. Cancellation of the run context is reported in Result.Err
// once every worker has drained the queue.
package fanout

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mwantia/phoenix-tracker/pkg/progress"
)

// Func handles one work item.
type Func[In, Out any] func(ctx context.Context, item In) ([]Out, error)

// Failure is an item whose Func returned an error or panicked.
type Failure[In any] struct {
	Item In
	Err  error
}

// Result is the merged, unordered output of a run.
type Result[In, Out any] struct {
	Items    []Out
	Failures []Failure[In]
	Total    int

	// Err is the context error when the run was cancelled.
	Err error
}

// Pool runs work items with a fixed number of workers.
type Pool struct {
	Name     string
	Workers  int
	Progress progress.Sink
}

// New creates a pool. Zero workers means one per CPU.
func New(name string, workers int, sink progress.Sink) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Pool{Name: name, Workers: workers, Progress: sink}
}

type outcome[In, Out any] struct {
	item  In
	items []Out
	err   error
}

// Run handles every item and blocks until all are done. Results are merged in
// completion order.
func Run[In, Out any](ctx context.Context, pool *Pool, items []In, fn Func[In, Out]) Result[In, Out] {
	result := Result[In, Out]{Total: len(items)}

	pool.Progress.Start(pool.Name, len(items))
	defer pool.Progress.Finish()

	if len(items) == 0 {
		return result
	}

	workers := pool.Workers
	if workers > len(items) {
		workers = len(items)
	}

	tasks := make(chan In, workers)
	outcomes := make(chan outcome[In, Out], workers)

	var group errgroup.Group
	for w := 0; w < workers; w++ {
		group.Go(func() error {
			for item := range tasks {
				out, err := call(ctx, fn, item)
				outcomes <- outcome[In, Out]{item: item, items: out, err: err}
			}
			return ctx.Err()
		})
	}

	go func() {
		defer close(tasks)
		for _, item := range items {
			tasks <- item
		}
	}()

	var waitErr error
	go func() {
		waitErr = group.Wait()
		close(outcomes)
	}()

	done := 0
	for o := range outcomes {
		done++
		if o.err != nil {
			result.Failures = append(result.Failures, Failure[In]{Item: o.item, Err: o.err})
		} else {
			result.Items = append(result.Items, o.items...)
		}
		pool.Progress.Update(done, len(items))
	}
	result.Err = waitErr

	return result
}

func call[In, Out any](ctx context.Context, fn Func[In, Out], item In) (out []Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fn(ctx, item)
}
