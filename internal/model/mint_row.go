package model

import "time"

// MintRow is the persisted projection of one run's mint accounting.
type MintRow struct {
	RunID             string    `json:"run_id"`
	RunDate           time.Time `json:"run_date"`
	Block             uint64    `json:"block"`
	FreeMints         int64     `json:"free_mints"`
	UsedMints         uint64    `json:"used_mints"`
	GKInCirculation   uint64    `json:"gk_in_circulation"`
	GKUnclaimed       uint64    `json:"gk_unclaimed"`
	TreasuryUnclaimed uint64    `json:"treasury_unclaimed"`
	InsiderUnclaimed  uint64    `json:"insider_unclaimed"`
	PublicMints       *int64    `json:"public_mints"`
	Degraded          bool      `json:"degraded"`
	DegradedReasons   []string  `json:"degraded_reasons,omitempty"`
}

// Variant selects the analytics table layout.
type Variant int

const (
	// VariantDaily writes a date column and no public mint count.
	VariantDaily Variant = iota
	// VariantExternalSupply writes publicmints and relies on the table's own timestamp.
	VariantExternalSupply
)

func (v Variant) String() string {
	if v == VariantExternalSupply {
		return "external-supply"
	}
	return "daily"
}
