package async

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Runner is the pipeline entry point a worker invokes for one dispatched task.
type Runner interface {
	Run(ctx context.Context, itemID uuid.UUID, taskRef string) error
}

type job struct {
	itemID  uuid.UUID
	taskRef string
}

// Queue dispatches pipeline runs asynchronously on a bounded worker pool.
// Tasks for different work items run concurrently with no ordering guarantee;
// each run owns exactly one work item for its duration.
type Queue struct {
	runner  Runner
	workers int
	timeout time.Duration

	ch   chan job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// Option configures the queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent pipeline runs.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets the number of buffered jobs before enqueue blocks.
func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan job, n)
		}
	}
}

// WithRunTimeout sets the per-run deadline.
func WithRunTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewQueue creates and starts the dispatch pool.
func NewQueue(runner Runner, opts ...Option) *Queue {
	q := &Queue{
		runner:  runner,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				for j := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.runner.Run(ctx, j.itemID, j.taskRef)
					cancel()

					if err != nil {
						log.Printf("[Queue] worker %d: task %s finished with error: %v", workerID, j.taskRef, err)
					}
				}
			}(i + 1)
		}
	})
}

// ErrShuttingDown is returned when scheduling after Shutdown began.
var ErrShuttingDown = errors.New("queue is shutting down")

// Schedule enqueues one pipeline run for the work item and returns the task
// reference identifying that run. Blocks when the buffer is full. The mutex
// is held across the send so Shutdown cannot close the channel under a
// blocked enqueue.
func (q *Queue) Schedule(ctx context.Context, itemID uuid.UUID) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrShuttingDown
	}

	taskRef := uuid.New().String()
	q.ch <- job{itemID: itemID, taskRef: taskRef}
	log.Printf("[Queue] scheduled task %s for item %s", taskRef, itemID)
	return taskRef, nil
}

// Shutdown stops accepting work and waits for in-flight runs to drain, up to
// the context deadline.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		log.Println("[Queue] shutdown interrupted by context")
	case <-done:
		log.Println("[Queue] drained, shutdown complete")
	}
}
