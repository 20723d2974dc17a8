package model

import "strings"

// SwapStatus is the lifecycle state of a swap, using the aggregator's
// own status vocabulary.
type SwapStatus string

const (
	StatusWaiting    SwapStatus = "waiting"    // trade created, no funds received yet
	StatusConfirming SwapStatus = "confirming" // deposit seen, awaiting confirmations
	StatusSending    SwapStatus = "sending"    // provider sending the settlement asset
	StatusFinished   SwapStatus = "finished"
	StatusFailed     SwapStatus = "failed"
	StatusExpired    SwapStatus = "expired" // no funds received in time
)

// statusRank encodes the canonical progression order of the happy path.
// Terminal failure states are handled separately in MergeStatus.
var statusRank = map[SwapStatus]int{
	StatusWaiting:    1,
	StatusConfirming: 2,
	StatusSending:    3,
	StatusFinished:   4,
}

// ParseSwapStatus normalizes a raw aggregator status string. Unknown values
// are returned as-is so callers can log them; IsValid reports whether the
// value is part of the known vocabulary.
func ParseSwapStatus(raw string) SwapStatus {
	return SwapStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// IsValid reports whether s is one of the known lifecycle states.
func (s SwapStatus) IsValid() bool {
	switch s {
	case StatusWaiting, StatusConfirming, StatusSending, StatusFinished, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether s permits no further transitions.
func (s SwapStatus) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// MergeStatus is the single transition rule for webhook-driven updates.
// It returns the state the swap should hold after observing incoming, and
// whether the update was applied. Webhook deliveries may arrive out of order
// or more than once, so the merge is monotone rather than a blind overwrite:
//
//   - a terminal current state is sticky; nothing changes it
//   - failed is accepted from any non-terminal state
//   - expired is accepted only from waiting
//   - happy-path states only move forward in the canonical order
func MergeStatus(current, incoming SwapStatus) (SwapStatus, bool) {
	if current.IsTerminal() {
		return current, false
	}
	switch incoming {
	case StatusFailed:
		return StatusFailed, true
	case StatusExpired:
		if current == StatusWaiting {
			return StatusExpired, true
		}
		return current, false
	}
	cr, ok := statusRank[current]
	ir, ok2 := statusRank[incoming]
	if !ok || !ok2 || ir <= cr {
		return current, false
	}
	return incoming, true
}
