package model

import (
	"time"

	"github.com/google/uuid"
)

// SwapStatusEvent is the payload published on swap status changes.
type SwapStatusEvent struct {
	EventID   uuid.UUID  `json:"event_id"`
	TradeID   string     `json:"trade_id"`
	Provider  string     `json:"provider"`
	Status    SwapStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Final     bool       `json:"final"`
	Source    string     `json:"source"` // "webhook" or "reconcile"
	Timestamp time.Time  `json:"timestamp"`
}
