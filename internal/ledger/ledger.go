// Package ledger implements the provenance ledger: it assigns identifiers to
// supply-chain events, appends them to a Store and answers provenance queries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

var (
	// ErrNotFound is returned by GetProvenance when no event carries the id.
	ErrNotFound = errors.New("product not found in blockchain")
	// ErrUnknownEventType is returned by RecordEvent for types outside the enum.
	ErrUnknownEventType = errors.New("unknown event type")
)

// Store is the append-only persistence the ledger runs on. Implementations
// must return events in insertion order. AppendCollection stores the event
// and its product atomically: either both are kept or neither is.
type Store interface {
	AppendEvent(ctx context.Context, ev model.Event) error
	AppendCollection(ctx context.Context, ev model.Event, p model.Product) error
	EventsByProduct(ctx context.Context, productID string) ([]model.Event, error)
	FindProduct(ctx context.Context, productID string) (model.Product, bool, error)
	Products(ctx context.Context) ([]model.Product, error)
	CountEvents(ctx context.Context) (int, error)
}

// Publisher receives every event after it has been stored.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// LinkSigner produces a verification URL for a product.
type LinkSigner interface {
	VerifyURL(productID string) string
}

// Ledger is safe for concurrent use as long as its Store is.
type Ledger struct {
	store     Store
	metrics   Metrics
	publisher Publisher
	links     LinkSigner
	ids       IDGenerator
	now       func() time.Time
	log       *zap.SugaredLogger
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithMetrics replaces the synthetic metrics provider.
func WithMetrics(m Metrics) Option { return func(l *Ledger) { l.metrics = m } }

// WithPublisher sets the fan-out target for recorded events.
func WithPublisher(p Publisher) Option { return func(l *Ledger) { l.publisher = p } }

// WithLinkSigner enables verifyUrl on provenance records.
func WithLinkSigner(s LinkSigner) Option { return func(l *Ledger) { l.links = s } }

// WithIDGenerator replaces the identifier source.
func WithIDGenerator(g IDGenerator) Option { return func(l *Ledger) { l.ids = g } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(log *zap.SugaredLogger) Option { return func(l *Ledger) { l.log = log } }

// New builds a Ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		metrics: NewSyntheticMetrics(),
		ids:     RandomIDs{},
		now:     time.Now,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordEvent stores a new event of kind t and, for collections, the product
// it creates. Every call mints a fresh product id, including processing and
// testing calls, so those events are never linked to an earlier collection.
func (l *Ledger) RecordEvent(ctx context.Context, t model.EventType, payload model.Payload) (model.Receipt, error) {
	if !t.Valid() {
		return model.Receipt{}, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	if payload == nil {
		payload = model.Payload{}
	}
	now := l.now().UTC()
	ev := model.Event{
		ProductID:     l.ids.ProductID(now),
		TransactionID: l.ids.TransactionID(),
		Type:          t,
		Timestamp:     now,
		Payload:       payload.Clone(),
		Status:        model.StatusConfirmed,
	}
	if err := l.append(ctx, ev); err != nil {
		return model.Receipt{}, fmt.Errorf("append %s event: %w", t, err)
	}
	recordedEvents.WithLabelValues(string(t)).Inc()
	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, ev); err != nil {
			l.log.Warnw("publish recorded event", "productId", ev.ProductID, "txId", ev.TransactionID, "error", err)
		}
	}
	l.log.Infow("event recorded", "eventType", t, "productId", ev.ProductID, "txId", ev.TransactionID)
	return model.Receipt{
		ProductID:     ev.ProductID,
		TransactionID: ev.TransactionID,
		BlockHeight:   l.metrics.BlockHeight(),
		Timestamp:     now,
	}, nil
}

// append stores ev, together with the product it creates for collections.
func (l *Ledger) append(ctx context.Context, ev model.Event) error {
	if ev.Type != model.EventCollection {
		return l.store.AppendEvent(ctx, ev)
	}
	return l.store.AppendCollection(ctx, ev, model.Product{
		ProductID:     ev.ProductID,
		TransactionID: ev.TransactionID,
		CreatedAt:     ev.Timestamp,
		Attributes:    ev.Payload.Clone(),
	})
}

// GetProvenance returns the ordered history of productID.
func (l *Ledger) GetProvenance(ctx context.Context, productID string) (model.ProvenanceRecord, error) {
	events, err := l.store.EventsByProduct(ctx, productID)
	if err != nil {
		return model.ProvenanceRecord{}, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return model.ProvenanceRecord{}, ErrNotFound
	}
	product, _, err := l.store.FindProduct(ctx, productID)
	if err != nil {
		return model.ProvenanceRecord{}, fmt.Errorf("load product: %w", err)
	}
	record := summarize(productID, product.Attributes, events)
	if l.links != nil {
		record.VerifyURL = l.links.VerifyURL(productID)
	}
	return record, nil
}

// ListUserProducts returns every product. userID is not used as a filter;
// products carry no owner field to filter on.
func (l *Ledger) ListUserProducts(ctx context.Context, userID string) ([]model.Product, error) {
	products, err := l.store.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products for %q: %w", userID, err)
	}
	return products, nil
}

// GetAnalytics counts stored events; the remaining figures are synthetic.
func (l *Ledger) GetAnalytics(ctx context.Context) (model.Analytics, error) {
	n, err := l.store.CountEvents(ctx)
	if err != nil {
		return model.Analytics{}, fmt.Errorf("count events: %w", err)
	}
	return model.Analytics{
		TotalTransactions:  n,
		ActiveParticipants: l.metrics.ActiveParticipants(),
		NetworkUptime:      l.metrics.NetworkUptime(),
	}, nil
}

// GetNetworkStatus reports the cosmetic network view.
func (l *Ledger) GetNetworkStatus() model.NetworkStatus {
	return model.NetworkStatus{
		Connected:   true,
		BlockHeight: l.metrics.BlockHeight(),
		Peers:       l.metrics.Peers(),
		NetworkID:   l.metrics.NetworkID(),
	}
}
