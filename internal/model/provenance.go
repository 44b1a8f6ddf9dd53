package model

import "time"

// Receipt is returned to the submitter of an event.
type Receipt struct {
	ProductID     string    `json:"productId"`
	TransactionID string    `json:"txId"`
	BlockHeight   int       `json:"blockHeight"`
	Timestamp     time.Time `json:"timestamp"`
}

// Quality summarises the grade attached to a supply-chain step.
type Quality struct {
	Grade string `json:"grade"`
}

// SupplyChainEntry is the summarised view of one event in a provenance record.
type SupplyChainEntry struct {
	EventType       EventType `json:"eventType"`
	ParticipantName string    `json:"participantName"`
	Organization    string    `json:"organization"`
	Location        string    `json:"location"`
	Timestamp       time.Time `json:"timestamp"`
	TransactionID   string    `json:"txId"`
	Status          string    `json:"status"`
	Quality         Quality   `json:"quality"`
}

// ProvenanceRecord is the ordered history of one product.
type ProvenanceRecord struct {
	ProductID   string             `json:"productId"`
	Species     string             `json:"species"`
	Origin      string             `json:"origin"`
	HarvestDate string             `json:"harvestDate"`
	TotalEvents int                `json:"totalEvents"`
	SupplyChain []SupplyChainEntry `json:"supplyChain"`
	VerifyURL   string             `json:"verifyUrl,omitempty"`
}

// Analytics is the dashboard summary.
type Analytics struct {
	TotalTransactions  int     `json:"totalTransactions"`
	ActiveParticipants int     `json:"activeParticipants"`
	NetworkUptime      float64 `json:"networkUptime"`
}

// Peer is one entry of the cosmetic peer list.
type Peer struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}

// NetworkStatus is the cosmetic network view.
type NetworkStatus struct {
	Connected   bool   `json:"connected"`
	BlockHeight int    `json:"blockHeight"`
	Peers       []Peer `json:"peers"`
	NetworkID   string `json:"networkId"`
}
