package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SwapCreateRequest is the payload to initiate a swap.
type SwapCreateRequest struct {
	Ticker   string          `json:"ticker" example:"btc"`
	Network  string          `json:"network" example:"Mainnet"`
	AmountTo decimal.Decimal `json:"amount_to" example:"0.5"`
	Address  string          `json:"address"`
}

func (r SwapCreateRequest) Validate() error {
	if strings.TrimSpace(r.Ticker) == "" {
		return fmt.Errorf("ticker is required")
	}
	if strings.TrimSpace(r.Network) == "" {
		return fmt.Errorf("network is required")
	}
	if !r.AmountTo.IsPositive() {
		return fmt.Errorf("amount_to must be greater than 0")
	}
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("address is required")
	}
	return nil
}

// SwapResponse is the API shape of a swap record.
type SwapResponse struct {
	TradeID   string `json:"trade_id"`
	Ticker    string `json:"ticker"`
	Network   string `json:"network"`
	AmountTo  string `json:"amount_to"`
	Address   string `json:"address"`
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}
