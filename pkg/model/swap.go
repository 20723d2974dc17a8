package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//
// ────────────────────────────────────────────────
//   Asset – catalog entry mirrored from /coins
// ────────────────────────────────────────────────
//

// Asset is one tradable coin/network combination from the aggregator's
// catalog. Identity is the (Name, Ticker, Network) tuple; the catalog store
// upserts on it.
type Asset struct {
	Name    string          `json:"name"`
	Ticker  string          `json:"ticker"`
	Network string          `json:"network"`
	Image   string          `json:"image"`
	Minimum decimal.Decimal `json:"minimum"`
	Maximum decimal.Decimal `json:"maximum"`
}

//
// ────────────────────────────────────────────────
//   Quote – one provider's offer, never persisted
// ────────────────────────────────────────────────
//

// Quote is a single exchange's offer to perform a swap. Quotes exist only for
// the duration of one selection pass.
type Quote struct {
	Provider  string  `json:"provider"`
	ETA       float64 `json:"eta"`       // estimated completion time in minutes
	KYCRating string  `json:"kycrating"` // ordered category, "A" (best) .. "D"
}

// SelectedQuote pairs the winning quote with the rate identifier the
// aggregator issued for the whole rate request. The rate id is what the
// trade-creation call references.
type SelectedQuote struct {
	RateID string `json:"rate_id"`
	Quote  Quote  `json:"quote"`
}

//
// ────────────────────────────────────────────────
//   Swap – persisted trade record
// ────────────────────────────────────────────────
//

// Swap is the locally persisted record of one in-flight or completed
// conversion. TradeID is the aggregator-assigned identifier and is unique and
// immutable once set. Swaps are created only after the upstream trade exists,
// mutated only through status merges, and never deleted.
type Swap struct {
	ID        uuid.UUID       `json:"id"`
	TradeID   string          `json:"trade_id"`
	Ticker    string          `json:"ticker"`
	Network   string          `json:"network"`
	AmountTo  decimal.Decimal `json:"amount_to"`
	Address   string          `json:"address"`
	Provider  string          `json:"provider"`
	Status    SwapStatus      `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
