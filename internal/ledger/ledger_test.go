package ledger_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dharsanguruparan/HerbTrace/internal/ledger"
	"github.com/dharsanguruparan/HerbTrace/internal/model"
	"github.com/dharsanguruparan/HerbTrace/internal/storage"
)

var fixture = ledger.FixedMetrics{
	Height:       1234,
	Participants: 7,
	Uptime:       99.9,
	PeerList:     []model.Peer{{ID: "peer0", Address: "localhost:7051", Connected: true}},
	Network:      "test-net",
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type failingStore struct {
	*storage.MemoryStore
	err error
}

func (f failingStore) AppendEvent(context.Context, model.Event) error { return f.err }
func (f failingStore) AppendCollection(context.Context, model.Event, model.Product) error {
	return f.err
}
func (f failingStore) EventsByProduct(context.Context, string) ([]model.Event, error) {
	return nil, f.err
}

func TestRecordEventIdentifiers(t *testing.T) {
	l := ledger.New(storage.NewMemoryStore(), ledger.WithMetrics(fixture))
	for _, typ := range []model.EventType{model.EventCollection, model.EventProcessing, model.EventTesting} {
		rec, err := l.RecordEvent(context.Background(), typ, model.Payload{"k": "v"})
		if err != nil {
			t.Fatalf("record %s: %v", typ, err)
		}
		if !strings.HasPrefix(rec.ProductID, "PROD_") {
			t.Fatalf("productId %q lacks PROD_ prefix", rec.ProductID)
		}
		if !strings.HasPrefix(rec.TransactionID, "TX_") || len(rec.TransactionID) != len("TX_")+9 {
			t.Fatalf("unexpected transactionId %q", rec.TransactionID)
		}
		if rec.BlockHeight != 1234 {
			t.Fatalf("expected block height from metrics, got %d", rec.BlockHeight)
		}
	}
}

func TestRecordEventProductIDFromClock(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	l := ledger.New(storage.NewMemoryStore(), ledger.WithClock(fixedClock(ts)))
	rec, err := l.RecordEvent(context.Background(), model.EventCollection, nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.ProductID != "PROD_1700000000123" {
		t.Fatalf("got %s", rec.ProductID)
	}
	if !rec.Timestamp.Equal(ts) {
		t.Fatalf("timestamp %v, want %v", rec.Timestamp, ts)
	}
}

func TestRecordEventUnknownType(t *testing.T) {
	l := ledger.New(storage.NewMemoryStore())
	_, err := l.RecordEvent(context.Background(), model.EventType("shipping"), nil)
	if !errors.Is(err, ledger.ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestRecordEventStoreFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	l := ledger.New(failingStore{MemoryStore: storage.NewMemoryStore(), err: boom})
	if _, err := l.RecordEvent(context.Background(), model.EventCollection, nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if _, err := l.GetProvenance(context.Background(), "PROD_1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

// collectionFailingStore accepts plain events but rejects collections.
type collectionFailingStore struct {
	*storage.MemoryStore
}

func (collectionFailingStore) AppendCollection(context.Context, model.Event, model.Product) error {
	return errors.New("products table locked")
}

func TestRecordEventFailedCollectionLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := ledger.New(collectionFailingStore{storage.NewMemoryStore()}, ledger.WithPublisher(pub))

	if _, err := l.RecordEvent(ctx, model.EventCollection, model.Payload{"farmerName": "Asha"}); err == nil {
		t.Fatalf("expected collection failure")
	}
	if _, err := l.RecordEvent(ctx, model.EventTesting, model.Payload{"labName": "Lab"}); err != nil {
		t.Fatalf("record testing: %v", err)
	}
	analytics, err := l.GetAnalytics(ctx)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.TotalTransactions != 1 {
		t.Fatalf("only the successful call may be counted, got %d", analytics.TotalTransactions)
	}
	products, _ := l.ListUserProducts(ctx, "u1")
	if len(products) != 0 {
		t.Fatalf("failed collection left a product: %+v", products)
	}
	if len(pub.events) != 1 || pub.events[0].Type != model.EventTesting {
		t.Fatalf("only the successful event may be published, got %+v", pub.events)
	}
}

func TestCollectionThenProvenance(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(storage.NewMemoryStore())
	rec, err := l.RecordEvent(ctx, model.EventCollection, model.Payload{"farmerName": "Asha", "herbType": "Tulsi"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	prov, err := l.GetProvenance(ctx, rec.ProductID)
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	if len(prov.SupplyChain) != 1 {
		t.Fatalf("expected one supply chain entry, got %d", len(prov.SupplyChain))
	}
	entry := prov.SupplyChain[0]
	if entry.EventType != model.EventCollection {
		t.Fatalf("eventType %s", entry.EventType)
	}
	if entry.ParticipantName != "Asha" {
		t.Fatalf("participantName %q", entry.ParticipantName)
	}
	if entry.TransactionID != rec.TransactionID {
		t.Fatalf("txId %q, want %q", entry.TransactionID, rec.TransactionID)
	}
	if prov.Species != "Unknown" || prov.Origin != "Unknown" {
		t.Fatalf("expected Unknown defaults, got species=%q origin=%q", prov.Species, prov.Origin)
	}
	if entry.Quality.Grade != "A" || entry.Organization != "Unknown" {
		t.Fatalf("unexpected defaults: %+v", entry)
	}
	if prov.HarvestDate != rec.Timestamp.Format("2006-01-02") {
		t.Fatalf("harvestDate %q", prov.HarvestDate)
	}
}

func TestProvenanceDescriptiveFields(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(storage.NewMemoryStore())
	rec, _ := l.RecordEvent(ctx, model.EventCollection, model.Payload{
		"species":      "Ocimum tenuiflorum",
		"location":     "Rishikesh",
		"harvestDate":  "2024-03-01",
		"farmName":     "Green Valley",
		"qualityGrade": "B",
	})
	prov, err := l.GetProvenance(ctx, rec.ProductID)
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	if prov.Species != "Ocimum tenuiflorum" || prov.Origin != "Rishikesh" || prov.HarvestDate != "2024-03-01" {
		t.Fatalf("unexpected descriptive fields: %+v", prov)
	}
	entry := prov.SupplyChain[0]
	if entry.Organization != "Green Valley" || entry.Location != "Rishikesh" || entry.Quality.Grade != "B" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestParticipantProbing(t *testing.T) {
	tests := []struct {
		name    string
		payload model.Payload
		person  string
		org     string
	}{
		{"farmer", model.Payload{"farmerName": "Asha", "farmName": "Asha Farms"}, "Asha", "Asha Farms"},
		{"processor", model.Payload{"processorName": "Ravi", "facility": "Unit 4"}, "Ravi", "Unit 4"},
		{"processor facilityName", model.Payload{"processorName": "Ravi", "facilityName": "Plant", "facility": "Unit 4"}, "Ravi", "Plant"},
		{"lab", model.Payload{"labName": "Herb Labs"}, "Herb Labs", "Herb Labs"},
		{"farmer wins over lab", model.Payload{"farmerName": "Asha", "labName": "Herb Labs"}, "Asha", "Herb Labs"},
		{"empty strings ignored", model.Payload{"farmerName": "", "processorName": "Ravi"}, "Ravi", "Unknown"},
		{"non-string ignored", model.Payload{"farmerName": 42}, "Unknown", "Unknown"},
		{"nothing", model.Payload{}, "Unknown", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := ledger.New(storage.NewMemoryStore())
			rec, err := l.RecordEvent(ctx, model.EventProcessing, tt.payload)
			if err != nil {
				t.Fatalf("record: %v", err)
			}
			prov, err := l.GetProvenance(ctx, rec.ProductID)
			if err != nil {
				t.Fatalf("provenance: %v", err)
			}
			got := prov.SupplyChain[0]
			if got.ParticipantName != tt.person || got.Organization != tt.org {
				t.Fatalf("got participant=%q org=%q, want %q %q", got.ParticipantName, got.Organization, tt.person, tt.org)
			}
		})
	}
}

func TestProvenanceNotFound(t *testing.T) {
	l := ledger.New(storage.NewMemoryStore())
	if _, err := l.GetProvenance(context.Background(), "PROD_nonexistent"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessingMintsUnlinkedProduct(t *testing.T) {
	ctx := context.Background()
	clock := time.UnixMilli(1700000000000)
	tick := func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	l := ledger.New(storage.NewMemoryStore(), ledger.WithClock(tick))
	col, _ := l.RecordEvent(ctx, model.EventCollection, model.Payload{"farmerName": "Asha"})
	proc, _ := l.RecordEvent(ctx, model.EventProcessing, model.Payload{"productId": col.ProductID})
	if proc.ProductID == col.ProductID {
		t.Fatalf("processing event must mint its own product id")
	}
	prov, _ := l.GetProvenance(ctx, col.ProductID)
	if len(prov.SupplyChain) != 1 {
		t.Fatalf("collection chain should not gain the processing event, got %d", len(prov.SupplyChain))
	}
	orphan, err := l.GetProvenance(ctx, proc.ProductID)
	if err != nil {
		t.Fatalf("orphan provenance: %v", err)
	}
	if orphan.Species != "Unknown" {
		t.Fatalf("orphan chain has no product, species %q", orphan.Species)
	}
	products, _ := l.ListUserProducts(ctx, "anyone")
	if len(products) != 1 {
		t.Fatalf("only collection creates products, got %d", len(products))
	}
}

func TestProvenanceInsertionOrder(t *testing.T) {
	// A frozen clock makes every call mint the same product id.
	ctx := context.Background()
	l := ledger.New(storage.NewMemoryStore(), ledger.WithClock(fixedClock(time.UnixMilli(1700000000000))))
	var txs []string
	for _, typ := range []model.EventType{model.EventCollection, model.EventProcessing, model.EventTesting} {
		rec, err := l.RecordEvent(ctx, typ, nil)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		txs = append(txs, rec.TransactionID)
	}
	prov, err := l.GetProvenance(ctx, "PROD_1700000000000")
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	if len(prov.SupplyChain) != 3 || prov.TotalEvents != 3 {
		t.Fatalf("expected 3 entries, got %d", len(prov.SupplyChain))
	}
	wantTypes := []model.EventType{model.EventCollection, model.EventProcessing, model.EventTesting}
	for i, entry := range prov.SupplyChain {
		if entry.EventType != wantTypes[i] || entry.TransactionID != txs[i] {
			t.Fatalf("entry %d out of order: %+v", i, entry)
		}
	}
}

func TestAnalyticsCountsEvents(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(storage.NewMemoryStore(), ledger.WithMetrics(fixture))
	for i := 0; i < 4; i++ {
		if _, err := l.RecordEvent(ctx, model.EventTesting, nil); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	first, err := l.GetAnalytics(ctx)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	second, _ := l.GetAnalytics(ctx)
	if first.TotalTransactions != 4 || second.TotalTransactions != 4 {
		t.Fatalf("expected 4 transactions, got %d then %d", first.TotalTransactions, second.TotalTransactions)
	}
	if first.ActiveParticipants != 7 || first.NetworkUptime != 99.9 {
		t.Fatalf("unexpected synthetic figures: %+v", first)
	}
}

func TestListUserProductsIgnoresUser(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(storage.NewMemoryStore())
	_, _ = l.RecordEvent(ctx, model.EventCollection, model.Payload{"farmerName": "Asha"})
	_, _ = l.RecordEvent(ctx, model.EventCollection, model.Payload{"farmerName": "Binu"})
	a, _ := l.ListUserProducts(ctx, "user-a")
	b, _ := l.ListUserProducts(ctx, "user-b")
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected full list for every user, got %d and %d", len(a), len(b))
	}
	if a[0].Attributes["farmerName"] != "Asha" || a[1].Attributes["farmerName"] != "Binu" {
		t.Fatalf("products out of order: %+v", a)
	}
}

func TestNetworkStatus(t *testing.T) {
	status := ledger.New(storage.NewMemoryStore(), ledger.WithMetrics(fixture)).GetNetworkStatus()
	if !status.Connected || status.BlockHeight != 1234 || status.NetworkID != "test-net" || len(status.Peers) != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSyntheticMetrics(t *testing.T) {
	m := ledger.NewSyntheticMetrics()
	for i := 0; i < 200; i++ {
		if h := m.BlockHeight(); h < 1000 || h >= 2000 {
			t.Fatalf("block height %d outside [1000,2000)", h)
		}
	}
	peers := m.Peers()
	if len(peers) != 3 || peers[2].Connected || !peers[0].Connected || !peers[1].Connected {
		t.Fatalf("unexpected peers: %+v", peers)
	}
	if m.NetworkID() != ledger.NetworkID {
		t.Fatalf("network id %q", m.NetworkID())
	}
}

func TestPublisherReceivesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("queue down")}
	l := ledger.New(storage.NewMemoryStore(), ledger.WithPublisher(pub))
	rec, err := l.RecordEvent(ctx, model.EventCollection, model.Payload{"farmerName": "Asha"})
	if err != nil {
		t.Fatalf("publish failure must not fail the call: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].TransactionID != rec.TransactionID {
		t.Fatalf("publisher got %+v", pub.events)
	}
	if pub.events[0].Status != model.StatusConfirmed {
		t.Fatalf("status %q", pub.events[0].Status)
	}
}

type staticLinks string

func (s staticLinks) VerifyURL(id string) string { return string(s) + id }

func TestProvenanceVerifyURL(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(storage.NewMemoryStore(), ledger.WithLinkSigner(staticLinks("https://verify/")))
	rec, _ := l.RecordEvent(ctx, model.EventCollection, nil)
	prov, _ := l.GetProvenance(ctx, rec.ProductID)
	if prov.VerifyURL != "https://verify/"+rec.ProductID {
		t.Fatalf("verifyUrl %q", prov.VerifyURL)
	}
}
