package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/pkg/model"
)

// fakeLifecycle records the updates it receives.
type fakeLifecycle struct {
	outcome ApplyOutcome
	err     error

	calls      int
	gotTradeID string
	gotStatus  model.SwapStatus
	gotReason  string
}

func (f *fakeLifecycle) ApplyStatusUpdate(_ context.Context, tradeID string, incoming model.SwapStatus, reason string) (ApplyOutcome, *model.Swap, error) {
	f.calls++
	f.gotTradeID = tradeID
	f.gotStatus = incoming
	f.gotReason = reason
	return f.outcome, &model.Swap{TradeID: tradeID, Status: incoming}, f.err
}

func newWebhookApp(service *fakeLifecycle, token string) *fiber.App {
	app := fiber.New()
	h := NewWebhookHandler(zap.NewNop(), service, token)
	app.Post("/webhooks/trocador/:token", h.HandleStatusWebhook)
	return app
}

func postCallback(t *testing.T, app *fiber.App, token string, payload any) (int, map[string]string) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/trocador/"+token, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]string
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func TestWebhook_AppliesUpdate(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeApplied}
	app := newWebhookApp(svc, "tok-123")

	code, body := postCallback(t, app, "tok-123", StatusCallback{
		TradeID: "trade-1",
		Status:  "confirming",
	})

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "applied", body["result"])
	assert.Equal(t, "trade-1", svc.gotTradeID)
	assert.Equal(t, model.StatusConfirming, svc.gotStatus)
}

func TestWebhook_AcceptsIDField(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeApplied}
	app := newWebhookApp(svc, "tok-123")

	code, _ := postCallback(t, app, "tok-123", map[string]string{
		"id":     "trade-2",
		"status": "finished",
	})

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "trade-2", svc.gotTradeID)
}

func TestWebhook_BadTokenRejectedWithoutMutation(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeApplied}
	app := newWebhookApp(svc, "tok-123")

	code, _ := postCallback(t, app, "wrong-token", StatusCallback{
		TradeID: "trade-1",
		Status:  "finished",
	})

	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Zero(t, svc.calls, "rejected callbacks must not touch the lifecycle")
}

func TestWebhook_EmptyConfiguredTokenRejectsAll(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeApplied}
	app := newWebhookApp(svc, "")

	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/trocador/", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Fiber 404s the empty param; either way nothing reaches the lifecycle.
	assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
	assert.Zero(t, svc.calls)
}

func TestWebhook_MalformedBody(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeApplied}
	app := newWebhookApp(svc, "tok-123")

	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/trocador/tok-123", bytes.NewReader([]byte("not-json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, svc.calls)
}

func TestWebhook_MissingFields(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeApplied}
	app := newWebhookApp(svc, "tok-123")

	tests := []struct {
		name    string
		payload StatusCallback
	}{
		{"no trade id", StatusCallback{Status: "finished"}},
		{"no status", StatusCallback{TradeID: "trade-1"}},
		{"unknown status", StatusCallback{TradeID: "trade-1", Status: "halted"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := postCallback(t, app, "tok-123", tt.payload)
			assert.Equal(t, fiber.StatusBadRequest, code)
		})
	}
	assert.Zero(t, svc.calls)
}

func TestWebhook_UnknownTradeStillAcknowledged(t *testing.T) {
	// Full service over an empty store: delivery may race record creation,
	// so the unknown trade must not trigger the aggregator's retry policy.
	h := newHarness()
	app := fiber.New()
	wh := NewWebhookHandler(zap.NewNop(), h.service, "tok-123")
	app.Post("/webhooks/trocador/:token", wh.HandleStatusWebhook)

	code, body := postCallback(t, app, "tok-123", StatusCallback{
		TradeID: "never-seen",
		Status:  "confirming",
	})

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "unknown", body["result"])
}

func TestWebhook_StaleAcknowledged(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeStale}
	app := newWebhookApp(svc, "tok-123")

	code, body := postCallback(t, app, "tok-123", StatusCallback{
		TradeID: "trade-1",
		Status:  "confirming",
	})

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "stale", body["result"])
}

func TestWebhook_StoreErrorReturns500(t *testing.T) {
	// Full service over a failing store: the status update was lost, so the
	// delivery must NOT be acknowledged — a 500 makes the aggregator retry.
	h := newHarness()
	seedSwap(h, model.StatusWaiting)
	h.store.mergeErr = errors.New("pg down")

	app := fiber.New()
	wh := NewWebhookHandler(zap.NewNop(), h.service, "tok-123")
	app.Post("/webhooks/trocador/:token", wh.HandleStatusWebhook)

	code, _ := postCallback(t, app, "tok-123", StatusCallback{
		TradeID: "trade-1",
		Status:  "confirming",
	})

	assert.Equal(t, fiber.StatusInternalServerError, code)
}

func TestWebhook_ReasonForwarded(t *testing.T) {
	svc := &fakeLifecycle{outcome: OutcomeApplied}
	app := newWebhookApp(svc, "tok-123")

	code, _ := postCallback(t, app, "tok-123", StatusCallback{
		TradeID: "trade-1",
		Status:  "failed",
		Reason:  "provider halted payouts",
	})

	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "provider halted payouts", svc.gotReason)
}
