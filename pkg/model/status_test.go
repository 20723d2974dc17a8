package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSwapStatus(t *testing.T) {
	assert.Equal(t, StatusWaiting, ParseSwapStatus("waiting"))
	assert.Equal(t, StatusConfirming, ParseSwapStatus("  Confirming "))
	assert.Equal(t, StatusFinished, ParseSwapStatus("FINISHED"))
	assert.False(t, ParseSwapStatus("halted").IsValid())
}

func TestMergeStatus_HappyPathForwardOnly(t *testing.T) {
	tests := []struct {
		name     string
		current  SwapStatus
		incoming SwapStatus
		want     SwapStatus
		applied  bool
	}{
		{"waiting to confirming", StatusWaiting, StatusConfirming, StatusConfirming, true},
		{"confirming to sending", StatusConfirming, StatusSending, StatusSending, true},
		{"sending to finished", StatusSending, StatusFinished, StatusFinished, true},
		{"waiting skips to sending", StatusWaiting, StatusSending, StatusSending, true},
		{"duplicate delivery", StatusConfirming, StatusConfirming, StatusConfirming, false},
		{"out of order delivery", StatusSending, StatusConfirming, StatusSending, false},
		{"regression to waiting", StatusFinished, StatusWaiting, StatusFinished, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := MergeStatus(tt.current, tt.incoming)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.applied, applied)
		})
	}
}

func TestMergeStatus_TerminalStatesAreSticky(t *testing.T) {
	for _, terminal := range []SwapStatus{StatusFinished, StatusFailed, StatusExpired} {
		for _, incoming := range []SwapStatus{StatusWaiting, StatusConfirming, StatusSending, StatusFinished, StatusFailed, StatusExpired} {
			got, applied := MergeStatus(terminal, incoming)
			assert.Equal(t, terminal, got, "current=%s incoming=%s", terminal, incoming)
			assert.False(t, applied, "current=%s incoming=%s", terminal, incoming)
		}
	}
}

func TestMergeStatus_FailedFromAnyNonTerminal(t *testing.T) {
	for _, current := range []SwapStatus{StatusWaiting, StatusConfirming, StatusSending} {
		got, applied := MergeStatus(current, StatusFailed)
		assert.Equal(t, StatusFailed, got)
		assert.True(t, applied)
	}
}

func TestMergeStatus_ExpiredOnlyFromWaiting(t *testing.T) {
	got, applied := MergeStatus(StatusWaiting, StatusExpired)
	assert.Equal(t, StatusExpired, got)
	assert.True(t, applied)

	// Funds already seen; a late expiry notice is stale.
	for _, current := range []SwapStatus{StatusConfirming, StatusSending} {
		got, applied := MergeStatus(current, StatusExpired)
		assert.Equal(t, current, got)
		assert.False(t, applied)
	}
}

func TestMergeStatus_UnknownIncomingDiscarded(t *testing.T) {
	got, applied := MergeStatus(StatusWaiting, SwapStatus("halted"))
	assert.Equal(t, StatusWaiting, got)
	assert.False(t, applied)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusFinished.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.False(t, StatusWaiting.IsTerminal())
	assert.False(t, StatusConfirming.IsTerminal())
	assert.False(t, StatusSending.IsTerminal())
}
