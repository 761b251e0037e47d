package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"routeplan/internal/logging"
)

// Worker publishes queued events in the background, retrying failures with
// exponential backoff up to MaxAttempts.
type Worker struct {
	Pub         Publisher
	Log         *zap.Logger
	MaxAttempts int
	Backoff     func(attempts int) time.Duration
	queue       chan Event
	stop        chan struct{}
	done        chan struct{}
}

func NewWorker(pub Publisher, log *zap.Logger) *Worker {
	return &Worker{
		Pub: pub, Log: logging.OrNop(log), MaxAttempts: 5, Backoff: nextBackoff,
		queue: make(chan Event, 256), stop: make(chan struct{}), done: make(chan struct{}),
	}
}

// Enqueue queues e without blocking. It reports false when the queue is full.
func (w *Worker) Enqueue(e Event) bool {
	select {
	case w.queue <- e:
		return true
	default:
		w.Log.Warn("notification queue full, dropping event", zap.String("type", e.Type), zap.String("plan_id", e.PlanID))
		return false
	}
}

func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.stop:
				// drain what is already queued
				for {
					select {
					case e := <-w.queue:
						w.deliver(e)
					default:
						return
					}
				}
			case e := <-w.queue:
				w.deliver(e)
			}
		}
	}()
}

// Stop delivers queued events and waits for the worker to exit.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) deliver(e Event) {
	for attempt := 0; attempt < w.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := w.Pub.Publish(ctx, e)
		cancel()
		if err == nil {
			return
		}
		w.Log.Warn("publish failed", zap.String("type", e.Type), zap.Int("attempt", attempt+1), zap.Error(err))
		if attempt+1 < w.MaxAttempts {
			time.Sleep(w.Backoff(attempt))
		}
	}
	w.Log.Error("giving up on event", zap.String("id", e.ID), zap.String("type", e.Type))
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
