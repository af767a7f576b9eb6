package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Invoker is the external single-URL extraction operation. It is opaque to
// the scheduler: possibly slow, possibly failing independently per call.
// A returned error is recorded as a failed item and never aborts the batch.
type Invoker interface {
	Extract(ctx context.Context, url string) (Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, url string) (Result, error)

func (f InvokerFunc) Extract(ctx context.Context, url string) (Result, error) {
	return f(ctx, url)
}

// ErrAlreadyRan is returned when Run is called twice on the same Runner.
// A Runner drives exactly one batch; construct a new one per run.
var ErrAlreadyRan = errors.New("batch runner already ran")

// Outcome is the terminal state of a batch run: the completed results in
// input-index order plus the aggregate summary.
type Outcome struct {
	// Results holds one entry per item that reached a terminal state,
	// ordered by original input index. Items skipped by cancellation are
	// absent; each Result carries its own Index.
	Results   []Result
	Summary   Summary
	Cancelled bool
}

// Runner schedules one batch: at most Concurrency invocations in flight,
// FIFO dispatch over the input order, results keyed by original index.
// It holds no state shared with other runs.
type Runner struct {
	id      uuid.UUID
	req     Request
	invoker Invoker
	tracker *Tracker
	log     *slog.Logger

	started    bool
	startedMu  sync.Mutex
	cancelled  chan struct{}
	cancelOnce sync.Once
}

// NewRunner validates the request and prepares a single-use runner.
// Validation failures mean no batch items were created.
func NewRunner(req Request, invoker Invoker, log *slog.Logger) (*Runner, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if invoker == nil {
		return nil, errors.New("batch: nil invoker")
	}
	if log == nil {
		log = slog.Default()
	}

	id := uuid.New()
	return &Runner{
		id:        id,
		req:       req,
		invoker:   invoker,
		tracker:   NewTracker(len(req.URLs)),
		log:       log.With("component", "batch", "batch_id", id.String()),
		cancelled: make(chan struct{}),
	}, nil
}

// ID identifies this batch run in logs and history records.
func (r *Runner) ID() uuid.UUID { return r.id }

// Tracker exposes the progress aggregator for subscription and snapshots.
func (r *Runner) Tracker() *Tracker { return r.tracker }

// Cancel stops dispatching new URLs. Invocations already in flight run to
// completion and their results are still recorded; abandoning them would
// leak the remote operation and corrupt progress accounting. Idempotent.
func (r *Runner) Cancel() {
	r.cancelOnce.Do(func() {
		close(r.cancelled)
		r.log.Info("batch cancelled, draining in-flight invocations")
	})
}

// Run executes the batch and blocks until every dispatched invocation has
// settled. Cancelling the context behaves like Cancel, except that
// in-flight calls also see their context cancelled.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	r.startedMu.Lock()
	if r.started {
		r.startedMu.Unlock()
		return nil, ErrAlreadyRan
	}
	r.started = true
	r.startedMu.Unlock()

	urls := r.req.URLs
	r.log.Info("starting batch",
		"urls", len(urls),
		"concurrency", r.req.Concurrency,
		"timeout_per_url", r.req.TimeoutPerURL,
		"use_cache", r.req.UseCache,
		"use_rate_limiting", r.req.UseRateLimiting,
		"use_stealth", r.req.UseStealth)

	start := time.Now()
	sem := make(chan struct{}, r.req.Concurrency)
	results := make([]Result, len(urls))
	done := make([]bool, len(urls))
	var wg sync.WaitGroup

dispatch:
	for i, url := range urls {
		// Acquiring the slot in input order gives FIFO dispatch and bounds
		// the in-flight count at Concurrency.
		select {
		case <-r.cancelled:
			break dispatch
		case <-ctx.Done():
			r.Cancel()
			break dispatch
		case sem <- struct{}{}:
		}

		// A slot may free up in the same instant cancellation lands; check
		// once more so no new item starts after cancel is observed.
		if ctx.Err() != nil {
			r.Cancel()
		}
		select {
		case <-r.cancelled:
			<-sem
			break dispatch
		default:
		}

		wg.Add(1)
		r.tracker.ItemStarted(i)
		go func(index int, url string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.invokeOne(ctx, index, url)
			results[index] = res
			done[index] = true
			r.tracker.ItemDone(res)
		}(i, url)
	}

	wg.Wait()

	cancelled := false
	select {
	case <-r.cancelled:
		cancelled = true
	default:
	}

	summary := r.tracker.Finalize(time.Since(start))

	completed := make([]Result, 0, summary.Attempted)
	for i := range results {
		if done[i] {
			completed = append(completed, results[i])
		}
	}

	r.log.Info("batch complete",
		"successful", summary.Successful,
		"failed", summary.Failed,
		"cached", summary.Cached,
		"skipped", summary.Skipped,
		"total_time", summary.TotalTime,
		"cancelled", cancelled)

	return &Outcome{Results: completed, Summary: summary, Cancelled: cancelled}, nil
}

// invokeOne runs a single extraction under the per-URL timeout and maps
// invoker errors into a failed Result. Failures are contained at the item
// boundary.
func (r *Runner) invokeOne(ctx context.Context, index int, url string) Result {
	callCtx, cancel := context.WithTimeout(ctx, r.req.TimeoutPerURL)
	defer cancel()

	start := time.Now()
	res, err := r.invoker.Extract(callCtx, url)
	elapsed := time.Since(start)

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("timeout after %s", r.req.TimeoutPerURL)
		}
		r.log.Warn("extraction failed", "url", url, "index", index, "error", msg)
		return Result{
			URL:           url,
			Index:         index,
			Success:       false,
			Error:         msg,
			ExecutionTime: elapsed,
		}
	}

	res.URL = url
	res.Index = index
	if res.ExecutionTime == 0 {
		res.ExecutionTime = elapsed
	}
	r.log.Debug("extraction done",
		"url", url,
		"index", index,
		"success", res.Success,
		"cached", res.Cached,
		"model", res.ModelUsed,
		"execution_time", res.ExecutionTime)
	return res
}
