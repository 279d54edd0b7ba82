package jobrunner

import (
	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/domain/model"
)

// DefaultQueueCapacity is used when a non-positive capacity is requested.
const DefaultQueueCapacity = 100

// Queue is a bounded FIFO of job ids. Enqueue never blocks: a full queue
// rejects the id with model.ErrQueueFull.
type Queue struct {
	ch chan string
}

// NewQueue creates a queue holding at most capacity ids.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan string, capacity)}
}

// Enqueue schedules id for processing.
func (q *Queue) Enqueue(id string) error {
	select {
	case q.ch <- id:
		return nil
	default:
		return model.ErrQueueFull
	}
}

// Len returns the number of ids waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

func (q *Queue) jobs() <-chan string { return q.ch }

var _ core.JobQueue = (*Queue)(nil)
