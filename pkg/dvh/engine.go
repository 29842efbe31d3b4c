// Package dvh computes dose-volume histograms for a set of ROIs in parallel
// and post-processes them for export.
package dvh

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rtdvh/internal/logger"
	"rtdvh/internal/models"
)

// FailurePolicy decides what the engine does when an ROI fails.
type FailurePolicy string

const (
	// Abort cancels outstanding work on the first failure and returns no
	// histograms.
	Abort FailurePolicy = "abort"

	// Skip keeps the ROIs that succeeded and reports the rest in a
	// *models.PartialResultError.
	Skip FailurePolicy = "skip"
)

// ParseFailurePolicy converts a configuration value into a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case Abort, "":
		return Abort, nil
	case Skip:
		return Skip, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want abort or skip)", s)
	}
}

// Calculator computes the histogram of a single ROI. Implementations must be
// safe for concurrent use and must not mutate the datasets they are given.
// A doseLimit <= 0 means no limit.
type Calculator[S, D any] interface {
	Calculate(ctx context.Context, structures S, dose D, roiID int, doseLimit float64) (*models.Histogram, error)
}

// CalculatorFunc adapts a plain function to the Calculator interface.
type CalculatorFunc[S, D any] func(ctx context.Context, structures S, dose D, roiID int, doseLimit float64) (*models.Histogram, error)

// Calculate calls f.
func (f CalculatorFunc[S, D]) Calculate(ctx context.Context, structures S, dose D, roiID int, doseLimit float64) (*models.Histogram, error) {
	return f(ctx, structures, dose, roiID, doseLimit)
}

// Options configures an Engine.
type Options struct {
	// Workers is the size of the worker pool. Defaults to runtime.NumCPU().
	Workers int

	// TaskTimeout bounds the computation of a single ROI. Zero disables it.
	TaskTimeout time.Duration

	// DoseLimit is passed to the calculator for every ROI. Zero means none.
	DoseLimit float64

	// OnError selects the failure policy. Defaults to Abort.
	OnError FailurePolicy
}

// Engine fans per-ROI histogram computation out over a worker pool and
// gathers the results into a Collection keyed by ROI id.
type Engine[S, D any] struct {
	calc Calculator[S, D]
	opts Options
}

// NewEngine creates an engine backed by the given calculator.
func NewEngine[S, D any](calc Calculator[S, D], opts Options) *Engine[S, D] {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.TaskTimeout < 0 {
		opts.TaskTimeout = 0
	}
	if opts.OnError == "" {
		opts.OnError = Abort
	}
	return &Engine[S, D]{calc: calc, opts: opts}
}

// Options returns the effective engine options.
func (e *Engine[S, D]) Options() Options {
	return e.opts
}

// roiResult is the single message a worker publishes per ROI id. Exactly
// one of hist and err is set.
type roiResult struct {
	id   int
	hist *models.Histogram
	err  error
}

// Compute calculates one histogram per unique ROI id.
//
// Under Abort the first failure is returned as a *models.ComputationError
// and the collection is nil. Under Skip the collection holds every ROI that
// succeeded and, if any failed, the error is a *models.PartialResultError.
//
// Compute returns once every pool worker has exited. A calculator that
// ignores its context past TaskTimeout is not waited for: its goroutine
// runs on after Compute returns and its result is dropped.
func (e *Engine[S, D]) Compute(ctx context.Context, structures S, dose D, roiIDs []int) (models.Collection, error) {
	ids := uniqueIDs(roiIDs)
	n := len(ids)
	collection := make(models.Collection, n)
	if n == 0 {
		return collection, nil
	}

	// Queue every id up front; workers pull until the queue is drained.
	queue := make(chan int, n)
	for _, id := range ids {
		queue <- id
	}
	close(queue)

	// Buffered to n so no worker ever blocks on its deposit
	results := make(chan roiResult, n)

	g, gctx := errgroup.WithContext(ctx)
	workers := min(e.opts.Workers, n)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return e.work(gctx, structures, dose, queue, results)
		})
	}

	// Collect exactly n results. Aggregation keys on id, so arrival order
	// does not matter.
	omitted := make(map[int]error)
	for received := 0; received < n; received++ {
		res := <-results
		if res.err != nil {
			omitted[res.id] = res.err
			logger.Debug("roi %d failed (%d/%d): %v", res.id, received+1, n, res.err)
			continue
		}
		collection[res.id] = res.hist
		logger.Debug("roi %d computed (%d/%d)", res.id, received+1, n)
	}

	// Every result is in; now wait for the workers themselves to exit.
	// Under Abort any failure surfaces here.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(omitted) > 0 {
		for _, id := range ids {
			if err, ok := omitted[id]; ok {
				logger.Warn("roi %d omitted from result: %v", id, err)
			}
		}
		return collection, &models.PartialResultError{Requested: n, Omitted: omitted}
	}

	return collection, nil
}

// work is the body of one pool worker. It publishes exactly one result per
// id it takes from the queue. Under Abort, after its first failure the
// worker stops computing, answers its remaining ids with cancellations and
// returns the failure so the group cancels its siblings.
func (e *Engine[S, D]) work(ctx context.Context, structures S, dose D, queue <-chan int, results chan<- roiResult) error {
	var abortErr error
	for id := range queue {
		if abortErr != nil {
			results <- roiResult{id: id, err: &models.ComputationError{ROIID: id, Cause: context.Canceled}}
			continue
		}

		hist, err := e.computeOne(ctx, structures, dose, id)
		results <- roiResult{id: id, hist: hist, err: err}

		if err != nil && e.opts.OnError == Abort {
			abortErr = err
		}
	}
	return abortErr
}

// computeOne runs the calculator for a single ROI under the task deadline.
// Panics in the calculator are converted into errors. A calculator that
// ignores its context keeps running after the deadline, but its result is
// discarded.
func (e *Engine[S, D]) computeOne(ctx context.Context, structures S, dose D, id int) (*models.Histogram, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.ComputationError{ROIID: id, Cause: err}
	}

	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.opts.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, e.opts.TaskTimeout)
	}
	defer cancel()

	type outcome struct {
		hist *models.Histogram
		err  error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("calculator panicked: %v", r)}
			}
		}()
		hist, err := e.calc.Calculate(taskCtx, structures, dose, id, e.opts.DoseLimit)
		done <- outcome{hist: hist, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, &models.ComputationError{ROIID: id, Cause: out.err}
		}
		if err := out.hist.Validate(); err != nil {
			return nil, &models.ComputationError{ROIID: id, Cause: err}
		}
		logger.Debug("roi %d: %d bins in %s", id, out.hist.Len(), time.Since(start))
		return out.hist, nil
	case <-taskCtx.Done():
		return nil, &models.ComputationError{ROIID: id, Cause: taskCtx.Err()}
	}
}

// uniqueIDs drops repeated ids, keeping the first occurrence order.
func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
