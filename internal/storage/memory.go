// Package storage contains the in-memory ledger store. Both collections live
// for the lifetime of the process and only grow.
package storage

import (
	"context"
	"sync"

	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

// MemoryStore keeps events and products in insertion order behind one
// RWMutex. Reads return copies.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []model.Event
	products []model.Product
	// byProduct indexes positions in events per product id.
	byProduct map[string][]int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byProduct: make(map[string][]int),
	}
}

// AppendEvent appends ev to the event log.
func (m *MemoryStore) AppendEvent(ctx context.Context, ev model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Copy before taking the lock so the caller's map is never shared with
	// the store.
	ev.Payload = ev.Payload.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEventLocked(ev)
	return nil
}

// AppendCollection appends a collection event and the product it creates
// under one lock, so readers never observe one without the other.
func (m *MemoryStore) AppendCollection(ctx context.Context, ev model.Event, p model.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev.Payload = ev.Payload.Clone()
	p.Attributes = p.Attributes.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEventLocked(ev)
	m.products = append(m.products, p)
	return nil
}

// appendEventLocked requires m.mu to be held for writing.
func (m *MemoryStore) appendEventLocked(ev model.Event) {
	// The index stores positions rather than copies; events is append-only so
	// a position never moves.
	m.byProduct[ev.ProductID] = append(m.byProduct[ev.ProductID], len(m.events))
	m.events = append(m.events, ev)
}

// EventsByProduct returns the events for productID in insertion order.
func (m *MemoryStore) EventsByProduct(ctx context.Context, productID string) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Read locks let concurrent provenance queries proceed together.
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.byProduct[productID]
	// Always a non-nil slice; callers treat length zero as "not found".
	out := make([]model.Event, 0, len(idx))
	for _, i := range idx {
		// Event is copied by value, but Payload is a map and must be cloned
		// or callers could write into the store.
		ev := m.events[i]
		ev.Payload = ev.Payload.Clone()
		out = append(out, ev)
	}
	return out, nil
}

// FindProduct returns the first product recorded under productID.
func (m *MemoryStore) FindProduct(ctx context.Context, productID string) (model.Product, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Linear scan: ids can repeat within one millisecond and the first
	// product recorded under an id is the one that describes the chain.
	for _, p := range m.products {
		if p.ProductID == productID {
			p.Attributes = p.Attributes.Clone()
			return p, true, nil
		}
	}
	return model.Product{}, false, nil
}

// Products returns every product in insertion order.
func (m *MemoryStore) Products(ctx context.Context) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Product, len(m.products))
	for i, p := range m.products {
		p.Attributes = p.Attributes.Clone()
		out[i] = p
	}
	return out, nil
}

// CountEvents returns the number of stored events.
func (m *MemoryStore) CountEvents(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events), nil
}
