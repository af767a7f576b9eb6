package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchRequest(urls []string, concurrency int) Request {
	return Request{
		URLs:        urls,
		Prompt:      "Extract the page title",
		Concurrency: concurrency,
	}
}

func urlList(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/page/%d", i)
	}
	return urls
}

func TestNewRunnerRejectsInvalidRequest(t *testing.T) {
	_, err := NewRunner(batchRequest(nil, 0), InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		return Result{}, nil
	}), nil)
	assert.ErrorIs(t, err, ErrNoURLs)
}

func TestNewRunnerRejectsNilInvoker(t *testing.T) {
	_, err := NewRunner(batchRequest(urlList(1), 0), nil, nil)
	assert.Error(t, err)
}

func TestRunAllSuccessful(t *testing.T) {
	urls := urlList(8)
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		return Result{Success: true, ExecutionTime: time.Millisecond}, nil
	})

	runner, err := NewRunner(batchRequest(urls, 3), invoker, nil)
	require.NoError(t, err)

	outcome, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, outcome.Cancelled)
	assert.Equal(t, 8, outcome.Summary.Successful)
	assert.Equal(t, 0, outcome.Summary.Failed)
	assert.Equal(t, 0, outcome.Summary.Skipped)

	// Results come back in input-index order regardless of completion order.
	require.Len(t, outcome.Results, 8)
	for i, res := range outcome.Results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, urls[i], res.URL)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const limit = 3

	var inFlight, maxInFlight atomic.Int64
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		cur := inFlight.Add(1)
		for {
			max := maxInFlight.Load()
			if cur <= max || maxInFlight.CompareAndSwap(max, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return Result{Success: true}, nil
	})

	runner, err := NewRunner(batchRequest(urlList(20), limit), invoker, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, maxInFlight.Load(), int64(limit))
}

func TestRunSequentialWhenConcurrencyOne(t *testing.T) {
	var mu sync.Mutex
	var order []string

	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		mu.Lock()
		order = append(order, url)
		mu.Unlock()
		return Result{Success: true}, nil
	})

	urls := urlList(6)
	runner, err := NewRunner(batchRequest(urls, 1), invoker, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	// With one slot, dispatch order is exactly input order.
	assert.Equal(t, urls, order)
}

func TestRunIsolatesFailures(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		if url == "https://example.com/page/1" {
			return Result{}, errors.New("connection refused")
		}
		return Result{Success: true}, nil
	})

	runner, err := NewRunner(batchRequest(urlList(3), 2), invoker, nil)
	require.NoError(t, err)

	outcome, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Summary.Successful)
	assert.Equal(t, 1, outcome.Summary.Failed)

	require.Len(t, outcome.Results, 3)
	assert.True(t, outcome.Results[0].Success)
	assert.False(t, outcome.Results[1].Success)
	assert.Equal(t, "connection refused", outcome.Results[1].Error)
	assert.True(t, outcome.Results[2].Success)
}

func TestRunPerURLTimeout(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})

	req := batchRequest(urlList(1), 1)
	req.TimeoutPerURL = 20 * time.Millisecond
	runner, err := NewRunner(req, invoker, nil)
	require.NoError(t, err)

	outcome, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.False(t, outcome.Results[0].Success)
	assert.Contains(t, outcome.Results[0].Error, "timeout after")
}

func TestRunCancelStopsDispatchAndDrains(t *testing.T) {
	const total = 20

	started := make(chan struct{}, total)
	release := make(chan struct{})
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		started <- struct{}{}
		<-release
		return Result{Success: true}, nil
	})

	runner, err := NewRunner(batchRequest(urlList(total), 2), invoker, nil)
	require.NoError(t, err)

	outcomeCh := make(chan *Outcome, 1)
	go func() {
		outcome, err := runner.Run(context.Background())
		require.NoError(t, err)
		outcomeCh <- outcome
	}()

	// Wait for the first two dispatches, cancel, then let them finish.
	<-started
	<-started
	runner.Cancel()
	close(release)

	outcome := <-outcomeCh
	assert.True(t, outcome.Cancelled)
	// The two in-flight items drained to completion; nothing new started.
	assert.Equal(t, 2, outcome.Summary.Attempted)
	assert.Equal(t, total-2, outcome.Summary.Skipped)
	assert.Len(t, outcome.Results, 2)
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 1)
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return Result{}, ctx.Err()
	})

	runner, err := NewRunner(batchRequest(urlList(10), 1), invoker, nil)
	require.NoError(t, err)

	go func() {
		<-started
		cancel()
	}()

	outcome, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Less(t, outcome.Summary.Attempted, 10)
}

func TestRunSingleUse(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		return Result{Success: true}, nil
	})

	runner, err := NewRunner(batchRequest(urlList(1), 1), invoker, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRan)
}

func TestRunProgressUpdates(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, url string) (Result, error) {
		return Result{Success: true}, nil
	})

	runner, err := NewRunner(batchRequest(urlList(5), 2), invoker, nil)
	require.NoError(t, err)

	updates, cancel := runner.Tracker().Subscribe()
	defer cancel()

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	var completions int
	prev := -1
	for u := range updates {
		assert.GreaterOrEqual(t, u.Progress.Completed, prev)
		prev = u.Progress.Completed
		if u.Result != nil {
			completions++
		}
	}
	assert.Equal(t, 5, completions)
}
