// Package lane provides keyed serial task queues: tasks sharing a key
// run strictly one at a time in FIFO order, tasks with different keys
// run concurrently. The autosave scheduler uses one lane per session id
// to guarantee at most one persistence call in flight per session.
package lane

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/internal/observability"
)

// ErrCancelled is returned to tasks rejected by Cancel or Close before
// they ran.
var ErrCancelled = errors.New("task cancelled")

// Task is a unit of work bound to a lane key.
type Task func(ctx context.Context) error

type taskRecord struct {
	ctx    context.Context
	task   Task
	result chan error
}

type laneState struct {
	queue   []*taskRecord
	running bool
}

// Queue runs tasks serialized per key.
type Queue struct {
	mu     sync.Mutex
	lanes  map[string]*laneState
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// New creates an empty queue.
func New(logger zerolog.Logger) *Queue {
	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "lane").Logger(),
	}
}

// Do enqueues task on the key's lane and blocks until it has run (or
// was rejected). Tasks on the same key never overlap.
func (q *Queue) Do(ctx context.Context, key string, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}

	record := &taskRecord{
		ctx:    ctx,
		task:   task,
		result: make(chan error, 1),
	}

	q.mu.Lock()
	if q.ctx.Err() != nil {
		q.mu.Unlock()
		return ErrCancelled
	}
	ls, ok := q.lanes[key]
	if !ok {
		ls = &laneState{}
		q.lanes[key] = ls
	}
	ls.queue = append(ls.queue, record)
	observability.SetLaneQueueSize(key, len(ls.queue))
	q.mu.Unlock()

	q.dispatch(key)

	return <-record.result
}

// Go is Do without waiting: the task still runs serialized on its lane,
// and errors are reported through the optional done callback.
func (q *Queue) Go(ctx context.Context, key string, task Task, done func(error)) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		err := q.Do(ctx, key, task)
		if done != nil {
			done(err)
		}
	}()
}

// dispatch starts the next task for key if none is running.
func (q *Queue) dispatch(key string) {
	q.mu.Lock()
	ls, ok := q.lanes[key]
	if !ok || ls.running || len(ls.queue) == 0 {
		q.mu.Unlock()
		return
	}
	record := ls.queue[0]
	ls.queue = ls.queue[1:]
	ls.running = true
	observability.SetLaneQueueSize(key, len(ls.queue))
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		runCtx, cancel := context.WithCancel(record.ctx)
		stop := context.AfterFunc(q.ctx, cancel)
		err := record.task(runCtx)
		stop()
		cancel()

		observability.RecordLaneTask(err == nil)
		if err != nil {
			q.logger.Debug().Str("key", key).Err(err).Msg("Lane task failed")
		}
		record.result <- err
		close(record.result)

		q.mu.Lock()
		if ls, ok := q.lanes[key]; ok {
			ls.running = false
			if len(ls.queue) == 0 {
				delete(q.lanes, key)
			}
		}
		q.mu.Unlock()

		q.dispatch(key)
	}()
}

// Cancel rejects all queued (not yet running) tasks for key.
func (q *Queue) Cancel(key string) int {
	q.mu.Lock()
	ls, ok := q.lanes[key]
	if !ok {
		q.mu.Unlock()
		return 0
	}
	pending := ls.queue
	ls.queue = nil
	if !ls.running {
		delete(q.lanes, key)
	}
	observability.SetLaneQueueSize(key, 0)
	q.mu.Unlock()

	for _, record := range pending {
		record.result <- ErrCancelled
		close(record.result)
	}
	return len(pending)
}

// Pending returns the number of queued tasks for key, excluding any
// running task.
func (q *Queue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ls, ok := q.lanes[key]; ok {
		return len(ls.queue)
	}
	return 0
}

// Close rejects everything queued and waits for running tasks.
func (q *Queue) Close() error {
	q.cancel()

	q.mu.Lock()
	var pending []*taskRecord
	for key, ls := range q.lanes {
		pending = append(pending, ls.queue...)
		ls.queue = nil
		if !ls.running {
			delete(q.lanes, key)
		}
	}
	q.mu.Unlock()

	for _, record := range pending {
		record.result <- ErrCancelled
		close(record.result)
	}

	q.wg.Wait()
	return nil
}
