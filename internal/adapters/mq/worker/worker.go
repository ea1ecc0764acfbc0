// Package worker applies queued win events to the ledger.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/asyncrace/internal/adapters/mq/queue"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
	"github.com/okian/asyncrace/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Recorder applies one win.
type Recorder interface {
	RecordWin(ctx context.Context, vehicleID int, elapsed float64) (model.WinnerRecord, error)
}

// Deduper guards against applying the same event twice.
type Deduper interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
}

// Queue is where workers receive events from.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// ResultFunc observes every processed event. rec is zero when err is set.
type ResultFunc func(e queue.Event, rec model.WinnerRecord, err error)

// InMemoryWorker applies events until its queue drains or it is stopped.
type InMemoryWorker struct {
	queue    Queue
	recorder Recorder
	dedupe   Deduper
	onResult ResultFunc
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes events until the queue channel closes, ctx is done or the
// worker is stopped. Stopping cancels the context handed to Dequeue and to
// the recorder, so nothing the worker started outlives Run.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Stop makes Run return without draining.
func (w *InMemoryWorker) Stop() {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
}

func (w *InMemoryWorker) process(ctx context.Context, e queue.Event) {
	if w.dedupe != nil && w.dedupe.SeenAndRecord(ctx, e.EventID) {
		w.logger.Debug(ctx, "duplicate win event skipped", logger.String("event", e.EventID))
		return
	}

	rec, err := w.recorder.RecordWin(ctx, e.VehicleID, e.Time)
	if err != nil {
		metrics.RecordWorkerError()
		if w.dedupe != nil {
			w.dedupe.Unrecord(ctx, e.EventID)
		}
		w.logger.Error(ctx, "recording win failed",
			logger.String("event", e.EventID),
			logger.Int("vehicle", e.VehicleID),
			logger.Error(err))
	} else {
		w.logger.Info(ctx, "win recorded",
			logger.String("event", e.EventID),
			logger.Int("vehicle", rec.ID),
			logger.Int("wins", rec.Wins),
			logger.Float64("best", rec.Time))
	}
	if w.onResult != nil {
		w.onResult(e, rec, err)
	}
}

// Pool runs several workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
	once    sync.Once
}

// NewPool creates workerCount workers. A count below 1 means one per CPU.
func NewPool(workerCount int, q Queue, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, recorder, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain it. Workers
// still busy when ctx expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-waitCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				w.Stop()
				err = fmt.Errorf("worker pool shutdown: %w", waitCtx.Err())
			}
		}
		metrics.UpdateWorkerCount(0)
	})
	return err
}
