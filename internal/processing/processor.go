// Package processing fans recorded events out to an Archiver on a small
// goroutine pool. It is the in-process alternative to the asynq queue.
package processing

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

// Archiver persists a copy of a recorded event somewhere outside the ledger.
type Archiver interface {
	Archive(ctx context.Context, ev model.Event) error
}

// Pool consumes events and hands each one to the Archiver.
type Pool struct {
	archiver Archiver
	queue    chan model.Event
	workers  int
	log      *zap.SugaredLogger
	wg       sync.WaitGroup
}

// New builds a Pool with queue capacity tied to worker count.
func New(archiver Archiver, workers int, log *zap.SugaredLogger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pool{
		archiver: archiver,
		// The buffer absorbs bursts of writes so RecordEvent never waits on
		// the archive.
		queue:    make(chan model.Event, workers*16),
		workers:  workers,
		log:      log,
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		// Add before starting the goroutine so Wait cannot return early.
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Publish queues ev without blocking. A full queue drops the event.
func (p *Pool) Publish(_ context.Context, ev model.Event) error {
	select {
	case p.queue <- ev:
	default:
		// The event is already stored in the ledger; only its archive copy
		// is lost.
		p.log.Warnw("archive queue full, dropping event", "productId", ev.ProductID, "txId", ev.TransactionID)
	}
	return nil
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Events still buffered at shutdown are not archived.
			return
		case ev := <-p.queue:
			if err := p.archiver.Archive(ctx, ev); err != nil {
				p.log.Errorw("archive event", "productId", ev.ProductID, "txId", ev.TransactionID, "error", err)
			}
		}
	}
}

// LogArchiver writes events to the log. It is used when no object store is
// configured.
type LogArchiver struct {
	Log *zap.SugaredLogger
}

// Archive logs ev at info level.
func (a LogArchiver) Archive(_ context.Context, ev model.Event) error {
	a.Log.Infow("event archived", "eventType", ev.Type, "productId", ev.ProductID, "txId", ev.TransactionID, "timestamp", ev.Timestamp)
	return nil
}
