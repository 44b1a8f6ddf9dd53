package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/HerbTrace/internal/model"
	"github.com/dharsanguruparan/HerbTrace/internal/processing"
	"github.com/dharsanguruparan/HerbTrace/internal/queue"
)

// presignTTL bounds the archive links written to the worker log.
const presignTTL = 24 * time.Hour

// presigner is implemented by archivers that can hand out read links.
type presigner interface {
	PresignEvent(ctx context.Context, ev model.Event, expiry time.Duration) (string, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	archiver processing.Archiver
	log      *zap.SugaredLogger
}

// NewProcessor constructs a worker processor.
func NewProcessor(archiver processing.Archiver, log *zap.SugaredLogger) *Processor {
	return &Processor{archiver: archiver, log: log}
}

// Handler registers the event-recorded handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.EventRecordedTask, p.handleEventRecorded)
	return mux
}

func (p *Processor) handleEventRecorded(ctx context.Context, task *asynq.Task) error {
	ev, err := queue.DecodeEvent(task)
	if err != nil {
		// A malformed payload will never decode; retrying is pointless.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := p.archiver.Archive(ctx, ev); err != nil {
		p.log.Errorw("archive failed", "productId", ev.ProductID, "txId", ev.TransactionID, "error", err)
		return err
	}
	fields := []any{"productId", ev.ProductID, "txId", ev.TransactionID}
	if ps, ok := p.archiver.(presigner); ok {
		link, err := ps.PresignEvent(ctx, ev, presignTTL)
		if err != nil {
			p.log.Warnw("presign archived event", "txId", ev.TransactionID, "error", err)
		} else {
			fields = append(fields, "archiveUrl", link)
		}
	}
	p.log.Infow("event archived", fields...)
	return nil
}
