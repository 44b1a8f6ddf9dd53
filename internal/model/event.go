// Package model contains the ledger records shared across packages.
package model

import (
	"encoding/json"
	"time"
)

// EventType names the supply-chain action an Event records.
type EventType string

const (
	EventCollection EventType = "collection"
	EventProcessing EventType = "processing"
	EventTesting    EventType = "testing"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventCollection, EventProcessing, EventTesting:
		return true
	}
	return false
}

// StatusConfirmed is the only status an event ever carries.
const StatusConfirmed = "confirmed"

// Payload is the free-form attribute map submitted with an event. It is stored
// verbatim and only interpreted at query time.
type Payload map[string]any

// String returns the value under key when it is a non-empty string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// First returns the first non-empty string found under keys, in order.
func (p Payload) First(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := p.String(k); ok {
			return s, true
		}
	}
	return "", false
}

// Clone returns a shallow copy so stored payloads cannot be mutated by callers.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Event is one recorded supply-chain action.
type Event struct {
	ProductID     string    `json:"productId"`
	TransactionID string    `json:"transactionId"`
	Type          EventType `json:"eventType"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       Payload   `json:"data"`
	Status        string    `json:"status"`
}

// Product is created by a collection event. Its JSON form is the submitted
// payload flattened together with the identifying fields.
type Product struct {
	ProductID     string
	TransactionID string
	CreatedAt     time.Time
	Attributes    Payload
}

// MarshalJSON merges Attributes with the identifying fields; the identifying
// fields win on key collisions.
func (p Product) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Attributes)+3)
	for k, v := range p.Attributes {
		out[k] = v
	}
	out["productId"] = p.ProductID
	out["transactionId"] = p.TransactionID
	out["createdAt"] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// UnmarshalJSON splits the identifying fields back out of the flat object.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	attrs := Payload(raw)
	p.ProductID, _ = attrs.String("productId")
	p.TransactionID, _ = attrs.String("transactionId")
	if created, ok := attrs.String("createdAt"); ok {
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return err
		}
		p.CreatedAt = ts
	}
	delete(attrs, "productId")
	delete(attrs, "transactionId")
	delete(attrs, "createdAt")
	p.Attributes = attrs
	return nil
}
