package ledger

import (
	"math/rand"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

var recordedEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "herbtrace_events_recorded_total",
		Help: "Supply-chain events appended to the ledger",
	},
	[]string{"event_type"},
)

func init() {
	prometheus.MustRegister(recordedEvents)
}

// Metrics supplies the figures that have no backing computation: block
// height, participants, uptime and peers.
type Metrics interface {
	BlockHeight() int
	ActiveParticipants() int
	NetworkUptime() float64
	Peers() []model.Peer
	NetworkID() string
}

// NetworkID is the constant identifier reported by SyntheticMetrics.
const NetworkID = "herbal-supply-chain"

// SyntheticMetrics produces random values for display.
type SyntheticMetrics struct{}

// NewSyntheticMetrics returns the default provider.
func NewSyntheticMetrics() SyntheticMetrics { return SyntheticMetrics{} }

// BlockHeight is uniform in [1000, 2000).
func (SyntheticMetrics) BlockHeight() int { return 1000 + rand.Intn(1000) }

// ActiveParticipants is uniform in [50, 150).
func (SyntheticMetrics) ActiveParticipants() int { return 50 + rand.Intn(100) }

func (SyntheticMetrics) NetworkUptime() float64 { return 99.9 }

// Peers returns three fixed peers; the third is always disconnected.
func (SyntheticMetrics) Peers() []model.Peer {
	return []model.Peer{
		{ID: "peer0.farmers.herbal.com", Address: "localhost:7051", Connected: true},
		{ID: "peer0.processors.herbal.com", Address: "localhost:8051", Connected: true},
		{ID: "peer0.labs.herbal.com", Address: "localhost:9051", Connected: false},
	}
}

func (SyntheticMetrics) NetworkID() string { return NetworkID }

// FixedMetrics returns the values it holds. It is meant for tests and demos.
type FixedMetrics struct {
	Height       int
	Participants int
	Uptime       float64
	PeerList     []model.Peer
	Network      string
}

func (f FixedMetrics) BlockHeight() int        { return f.Height }
func (f FixedMetrics) ActiveParticipants() int { return f.Participants }
func (f FixedMetrics) NetworkUptime() float64  { return f.Uptime }

func (f FixedMetrics) Peers() []model.Peer {
	out := make([]model.Peer, len(f.PeerList))
	copy(out, f.PeerList)
	return out
}

func (f FixedMetrics) NetworkID() string { return f.Network }
