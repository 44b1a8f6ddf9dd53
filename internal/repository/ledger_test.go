package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dharsanguruparan/HerbTrace/internal/database"
	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

// newTestRepository connects to HERBTRACE_TEST_DATABASE_URL and truncates the
// ledger tables. The test is skipped when the variable is unset.
func newTestRepository(t *testing.T) *LedgerRepository {
	t.Helper()
	dsn := os.Getenv("HERBTRACE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("HERBTRACE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE ledger_events, ledger_products`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewLedgerRepository(pool)
}

func TestLedgerRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// Later rows carry earlier timestamps to prove ordering follows seq.
	for i, tx := range []string{"TX_1", "TX_2", "TX_3"} {
		ev := model.Event{
			ProductID:     "PROD_1",
			TransactionID: tx,
			Type:          model.EventProcessing,
			Timestamp:     base.Add(-time.Duration(i) * time.Hour),
			Payload:       model.Payload{"processorName": "Ravi"},
			Status:        model.StatusConfirmed,
		}
		if err := repo.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("append %s: %v", tx, err)
		}
	}
	collection := model.Event{
		ProductID:     "PROD_1",
		TransactionID: "TX_4",
		Type:          model.EventCollection,
		Timestamp:     base,
		Payload:       model.Payload{"species": "Tulsi"},
		Status:        model.StatusConfirmed,
	}
	product := model.Product{ProductID: "PROD_1", TransactionID: "TX_4", CreatedAt: base, Attributes: model.Payload{"species": "Tulsi"}}
	if err := repo.AppendCollection(ctx, collection, product); err != nil {
		t.Fatalf("append collection: %v", err)
	}

	events, err := repo.EventsByProduct(ctx, "PROD_1")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	for i, want := range []string{"TX_1", "TX_2", "TX_3", "TX_4"} {
		if events[i].TransactionID != want {
			t.Fatalf("event %d: got %s want %s", i, events[i].TransactionID, want)
		}
	}
	if events[0].Payload["processorName"] != "Ravi" {
		t.Fatalf("payload lost: %+v", events[0].Payload)
	}

	p, ok, err := repo.FindProduct(ctx, "PROD_1")
	if err != nil || !ok {
		t.Fatalf("find product: ok=%v err=%v", ok, err)
	}
	if p.Attributes["species"] != "Tulsi" || !p.CreatedAt.Equal(base) {
		t.Fatalf("unexpected product: %+v", p)
	}
	if _, ok, err := repo.FindProduct(ctx, "PROD_missing"); ok || err != nil {
		t.Fatalf("expected missing product, ok=%v err=%v", ok, err)
	}
	n, err := repo.CountEvents(ctx)
	if err != nil || n != 4 {
		t.Fatalf("count: %d %v", n, err)
	}
	products, err := repo.Products(ctx)
	if err != nil || len(products) != 1 {
		t.Fatalf("products: %d %v", len(products), err)
	}
}

func TestLedgerRepositoryCollectionIsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	ev := model.Event{ProductID: "PROD_9", TransactionID: "TX_9", Type: model.EventCollection, Timestamp: time.Now(), Status: model.StatusConfirmed}

	// A cancelled context aborts the transaction, so neither row may remain.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := repo.AppendCollection(cancelled, ev, model.Product{ProductID: "PROD_9", TransactionID: "TX_9", CreatedAt: time.Now()}); err == nil {
		t.Fatalf("expected error from cancelled collection")
	}
	if n, err := repo.CountEvents(ctx); err != nil || n != 0 {
		t.Fatalf("expected no events after failed collection, got %d %v", n, err)
	}
	if _, ok, err := repo.FindProduct(ctx, "PROD_9"); ok || err != nil {
		t.Fatalf("expected no product after failed collection, ok=%v err=%v", ok, err)
	}
}
