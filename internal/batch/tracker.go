package batch

import (
	"sync"
	"time"
)

// Result is the terminal outcome of one batch item, keyed by the item's
// original input index. Exactly one of the success payload or the error
// message is populated.
type Result struct {
	URL              string
	Index            int
	Success          bool
	Data             map[string]any
	Error            string
	ExecutionTime    time.Duration
	ModelUsed        string
	FallbackAttempts int
	Cached           bool
	// ValidationPassed is nil when no schema was requested.
	ValidationPassed *bool
}

// Snapshot is a consistent view of batch progress. Completed never
// decreases and never exceeds Total.
type Snapshot struct {
	Completed int
	Total     int
	Succeeded int
	Failed    int
	Cached    int
}

// Update is pushed to subscribers whenever an item starts running or
// reaches its terminal state.
type Update struct {
	Index    int
	Running  bool
	Result   *Result
	Progress Snapshot
}

// Summary is computed once, after the last item settles or the batch is
// cancelled and drained.
type Summary struct {
	Total      int
	Successful int
	Failed     int
	Cached     int
	// Attempted counts items that reached a terminal state; Skipped counts
	// items never dispatched because the batch was cancelled.
	Attempted int
	Skipped   int
	TotalTime time.Duration
	// AvgTimePerURL averages execution time over attempted items only,
	// regardless of success. Skipped items are excluded.
	AvgTimePerURL time.Duration
}

// Tracker aggregates per-item completions into running tallies and a final
// summary. All updates flow through the single completion path, so one
// mutex is enough; no item is ever counted twice because each completion
// handler owns exactly one index.
type Tracker struct {
	mu        sync.Mutex
	total     int
	completed int
	succeeded int
	failed    int
	cached    int
	execSum   time.Duration
	finalized bool

	subs    map[int]chan Update
	nextSub int
}

// NewTracker creates a tracker for a batch of the given size.
func NewTracker(total int) *Tracker {
	return &Tracker{
		total: total,
		subs:  make(map[int]chan Update),
	}
}

// Subscribe registers a progress observer. The returned channel receives
// every update the buffer can hold; stale intermediate updates are dropped
// rather than blocking the completion path. The cancel function
// unregisters and closes the channel, and is safe to call twice.
func (t *Tracker) Subscribe() (<-chan Update, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Buffer sized for a start and a done update per item.
	ch := make(chan Update, 2*t.total+4)
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// ItemStarted records the pending -> running transition for one index.
func (t *Tracker) ItemStarted(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publish(Update{Index: index, Running: true, Progress: t.snapshot()})
}

// ItemDone records a terminal result. Completed increases by exactly one
// per item, success or failure.
func (t *Tracker) ItemDone(res Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed++
	t.execSum += res.ExecutionTime
	if res.Success {
		t.succeeded++
	} else {
		t.failed++
	}
	if res.Cached {
		t.cached++
	}
	t.publish(Update{Index: res.Index, Result: &res, Progress: t.snapshot()})
}

// Snapshot returns the current progress counts. Safe to call at any time,
// including mid-batch.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() Snapshot {
	return Snapshot{
		Completed: t.completed,
		Total:     t.total,
		Succeeded: t.succeeded,
		Failed:    t.failed,
		Cached:    t.cached,
	}
}

// Finalize computes the batch summary from the tallies accumulated so far
// and closes all subscriber channels. A cancelled batch reports only the
// items that actually completed; the rest are counted as skipped.
func (t *Tracker) Finalize(wall time.Duration) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.finalized {
		t.finalized = true
		for id, sub := range t.subs {
			delete(t.subs, id)
			close(sub)
		}
	}

	s := Summary{
		Total:      t.total,
		Successful: t.succeeded,
		Failed:     t.failed,
		Cached:     t.cached,
		Attempted:  t.completed,
		Skipped:    t.total - t.completed,
		TotalTime:  wall,
	}
	if t.completed > 0 {
		s.AvgTimePerURL = t.execSum / time.Duration(t.completed)
	}
	return s
}

// publish delivers an update to every subscriber without blocking the
// completion path. Caller must hold t.mu.
func (t *Tracker) publish(u Update) {
	for _, sub := range t.subs {
		select {
		case sub <- u:
		default:
		}
	}
}
