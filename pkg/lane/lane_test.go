package lane

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsTask(t *testing.T) {
	q := New(zerolog.Nop())
	defer q.Close()

	ran := false
	err := q.Do(context.Background(), "k", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestDoReturnsTaskError(t *testing.T) {
	q := New(zerolog.Nop())
	defer q.Close()

	boom := errors.New("boom")
	err := q.Do(context.Background(), "k", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSameKeySerialized(t *testing.T) {
	q := New(zerolog.Nop())
	defer q.Close()

	var mu sync.Mutex
	var order []int
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			q.Do(context.Background(), "same", func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				order = append(order, i)
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, maxRunning, "tasks on one key must never overlap")
	assert.Len(t, order, 5)
}

func TestDifferentKeysRunConcurrently(t *testing.T) {
	q := New(zerolog.Nop())
	defer q.Close()

	gate := make(chan struct{})
	done := make(chan struct{})

	q.Go(context.Background(), "a", func(ctx context.Context) error {
		<-gate
		return nil
	}, nil)

	go func() {
		q.Do(context.Background(), "b", func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lane b blocked behind lane a")
	}
	close(gate)
}

func TestCancelRejectsQueued(t *testing.T) {
	q := New(zerolog.Nop())
	defer q.Close()

	gate := make(chan struct{})
	q.Go(context.Background(), "k", func(ctx context.Context) error {
		<-gate
		return nil
	}, nil)

	errs := make(chan error, 1)
	q.Go(context.Background(), "k", func(ctx context.Context) error {
		return nil
	}, func(err error) { errs <- err })

	// Wait for the second task to be queued behind the first.
	require.Eventually(t, func() bool { return q.Pending("k") == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 1, q.Cancel("k"))
	close(gate)
	assert.ErrorIs(t, <-errs, ErrCancelled)
}

func TestCloseRejectsAndWaits(t *testing.T) {
	q := New(zerolog.Nop())

	started := make(chan struct{})
	finished := false
	q.Go(context.Background(), "k", func(ctx context.Context) error {
		close(started)
		time.Sleep(10 * time.Millisecond)
		finished = true
		return nil
	}, nil)

	<-started
	require.NoError(t, q.Close())
	assert.True(t, finished, "Close must wait for running tasks")

	assert.ErrorIs(t, q.Do(context.Background(), "k", func(ctx context.Context) error {
		return nil
	}), ErrCancelled)
}
