package jobrunner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/converti/converti-api/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingProcessor struct {
	release  chan struct{}
	active   atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
	finished chan string
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{release: make(chan struct{}), finished: make(chan string, 64)}
}

func (p *blockingProcessor) Process(_ context.Context, id string) {
	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	<-p.release
	p.active.Add(-1)

	p.mu.Lock()
	p.seen = append(p.seen, id)
	p.mu.Unlock()
	p.finished <- id
}

type panickingProcessor struct {
	calls atomic.Int32
	done  chan struct{}
}

func (p *panickingProcessor) Process(context.Context, string) {
	if p.calls.Add(1) == 1 {
		panic("boom")
	}
	close(p.done)
}

func TestQueue_RejectsWhenFull(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	require.ErrorIs(t, q.Enqueue("c"), model.ErrQueueFull)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Cap())

	assert.Equal(t, DefaultQueueCapacity, NewQueue(0).Cap())
}

func TestNewRunner_RequiresDependencies(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Processor: newBlockingProcessor()})
	require.Error(t, err)

	_, err = NewRunner(RunnerOptions{Queue: NewQueue(1)})
	require.Error(t, err)
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	q := NewQueue(10)
	proc := newBlockingProcessor()
	r, err := NewRunner(RunnerOptions{Queue: q, Processor: proc, Concurrency: 2})
	require.NoError(t, err)

	for _, id := range []string{"j1", "j2", "j3", "j4"} {
		require.NoError(t, q.Enqueue(id))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return proc.active.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	// Two workers are busy, so the remaining ids stay queued.
	assert.Equal(t, 2, q.Len())

	close(proc.release)
	for range 4 {
		select {
		case <-proc.finished:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.LessOrEqual(t, proc.peak.Load(), int32(2))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	proc.mu.Lock()
	assert.ElementsMatch(t, []string{"j1", "j2", "j3", "j4"}, proc.seen)
	proc.mu.Unlock()
}

func TestRunner_SurvivesProcessorPanic(t *testing.T) {
	q := NewQueue(4)
	proc := &panickingProcessor{done: make(chan struct{})}
	r, err := NewRunner(RunnerOptions{Queue: q, Processor: proc, Concurrency: 1})
	require.NoError(t, err)

	require.NoError(t, q.Enqueue("first"))
	require.NoError(t, q.Enqueue("second"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("second job never processed after panic")
	}
}
