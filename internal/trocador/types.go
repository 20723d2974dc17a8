package trocador

import (
	"fmt"

	"github.com/shopspring/decimal"
)

//
// ────────────────────────────────────────────────
//   TROCADOR → CANONICAL : Catalog
// ────────────────────────────────────────────────
//

// Coin is one entry of GET /coins.
type Coin struct {
	Name    string          `json:"name"`
	Ticker  string          `json:"ticker"`
	Network string          `json:"network"`
	Image   string          `json:"image"`
	Minimum decimal.Decimal `json:"minimum"`
	Maximum decimal.Decimal `json:"maximum"`
}

//
// ────────────────────────────────────────────────
//   TROCADOR → CANONICAL : Rate / Quotes
// ────────────────────────────────────────────────
//

// RateQuote is a single provider offer inside a rate response.
type RateQuote struct {
	Provider  string  `json:"provider"`
	ETA       float64 `json:"eta"`
	KYCRating string  `json:"kycrating"`
}

// RateResponse is the payload of GET /new_rate. The aggregator nests the
// offer list one level down.
type RateResponse struct {
	TradeID string `json:"trade_id"`
	Quotes  struct {
		Quotes []RateQuote `json:"quotes"`
	} `json:"quotes"`
}

//
// ────────────────────────────────────────────────
//   TROCADOR → CANONICAL : Trade
// ────────────────────────────────────────────────
//

// TradeResponse is the payload of GET /new_trade.
type TradeResponse struct {
	TradeID string `json:"trade_id"`
}

// TradeSnapshot is one element of the array returned by GET /trade.
type TradeSnapshot struct {
	TradeID         string          `json:"trade_id"`
	Status          string          `json:"status"`
	Provider        string          `json:"provider"`
	TickerFrom      string          `json:"ticker_from"`
	NetworkFrom     string          `json:"network_from"`
	AmountFrom      decimal.Decimal `json:"amount_from"`
	AmountTo        decimal.Decimal `json:"amount_to"`
	AddressProvider string          `json:"address_provider"` // deposit address the payer sends to
	AddressUser     string          `json:"address_user"`     // settlement destination
	Details         string          `json:"details,omitempty"`
}

// TradeRequest carries everything GET /new_trade needs beyond the selection
// policy: the rate id links back to the quote request, provider is the chosen
// exchange.
type TradeRequest struct {
	RateID     string
	Provider   string
	Ticker     string
	Network    string
	AmountTo   decimal.Decimal
	Address    string
	WebhookURL string
}

//
// ────────────────────────────────────────────────
//   TROCADOR : Error Response
// ────────────────────────────────────────────────
//

// errorResponse is the aggregator's error body shape.
type errorResponse struct {
	Error string `json:"error"`
}

// GatewayError is a transport failure or non-2xx response from the
// aggregator. Recoverable by retrying the whole call.
type GatewayError struct {
	Status  int    // HTTP status, 0 for transport failures
	Message string // upstream error message when available
	Err     error  // underlying cause, if any
}

func (e *GatewayError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("trocador returned %d: %s", e.Status, e.Message)
	case e.Message != "":
		return "trocador: " + e.Message
	case e.Err != nil:
		return "trocador: " + e.Err.Error()
	default:
		return fmt.Sprintf("trocador returned %d", e.Status)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }
