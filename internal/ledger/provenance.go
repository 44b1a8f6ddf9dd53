package ledger

import (
	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

const unknown = "Unknown"

// Payload keys probed when summarising an event, in priority order.
var (
	participantKeys  = []string{"farmerName", "processorName", "labName"}
	organizationKeys = []string{"farmName", "facilityName", "facility", "labName"}
	locationKeys     = []string{"location", "facilityLocation"}
	gradeKeys        = []string{"qualityGrade", "grade"}
)

const defaultGrade = "A"

func summarize(productID string, product model.Payload, events []model.Event) model.ProvenanceRecord {
	record := model.ProvenanceRecord{
		ProductID:   productID,
		Species:     orDefault(product, unknown, "species"),
		Origin:      orDefault(product, unknown, "origin", "location"),
		HarvestDate: orDefault(product, events[0].Timestamp.UTC().Format("2006-01-02"), "harvestDate"),
		TotalEvents: len(events),
		SupplyChain: make([]model.SupplyChainEntry, 0, len(events)),
	}
	for _, ev := range events {
		record.SupplyChain = append(record.SupplyChain, model.SupplyChainEntry{
			EventType:       ev.Type,
			ParticipantName: orDefault(ev.Payload, unknown, participantKeys...),
			Organization:    orDefault(ev.Payload, unknown, organizationKeys...),
			Location:        orDefault(ev.Payload, unknown, locationKeys...),
			Timestamp:       ev.Timestamp,
			TransactionID:   ev.TransactionID,
			Status:          ev.Status,
			Quality:         model.Quality{Grade: orDefault(ev.Payload, defaultGrade, gradeKeys...)},
		})
	}
	return record
}

func orDefault(p model.Payload, def string, keys ...string) string {
	if s, ok := p.First(keys...); ok {
		return s
	}
	return def
}
