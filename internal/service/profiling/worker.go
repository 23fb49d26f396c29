package profiling

import (
	"context"
	"log/slog"
	"sync"
)

// Worker consumes scheduled profile updates on background goroutines.
// Scheduling never blocks the request path: when the queue is full the
// update is dropped and the next transaction for the user retries it.
type Worker struct {
	aggregator *Aggregator
	logger     *slog.Logger

	queue chan string
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	once    sync.Once
}

// NewWorker creates a worker with the given queue depth and concurrency.
func NewWorker(aggregator *Aggregator, queueSize, workers int, logger *slog.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}

	w := &Worker{
		aggregator: aggregator,
		logger:     logger,
		queue:      make(chan string, queueSize),
	}

	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Schedule enqueues a profile update for the user.
func (w *Worker) Schedule(userID string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}

	select {
	case w.queue <- userID:
	default:
		w.logger.Warn("behavior update queue full, dropping update",
			"user_id", userID)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for userID := range w.queue {
		// Aggregation failures are swallowed; the next transaction
		// for the user schedules a retry.
		if err := w.aggregator.Update(context.Background(), userID); err != nil {
			w.logger.Error("behavior update failed",
				"user_id", userID, "error", err)
		}
	}
}

// Stop drains the queue and waits for in-flight updates to finish.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.queue)
	})
	w.wg.Wait()
}
