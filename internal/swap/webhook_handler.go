package swap

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/internal/metrics"
	"github.com/streamtip/swap-adapter/pkg/model"
	"github.com/streamtip/swap-adapter/pkg/utils"
)

// Lifecycle is the slice of the lifecycle manager the webhook handler needs.
type Lifecycle interface {
	ApplyStatusUpdate(ctx context.Context, tradeID string, incoming model.SwapStatus, reason string) (ApplyOutcome, *model.Swap, error)
}

// StatusCallback is the inbound webhook payload. The aggregator has used both
// trade_id and id for the identifier field.
type StatusCallback struct {
	TradeID string `json:"trade_id"`
	ID      string `json:"id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// WebhookHandler handles incoming status callbacks from the aggregator.
// Authentication is by URL possession: the path token must match the shared
// secret embedded in the callback URL at trade-creation time.
type WebhookHandler struct {
	logger  *zap.Logger
	service Lifecycle
	token   string
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(logger *zap.Logger, service Lifecycle, token string) *WebhookHandler {
	return &WebhookHandler{
		logger:  logger,
		service: service,
		token:   token,
	}
}

// HandleStatusWebhook processes swap status callbacks.
// POST /webhooks/trocador/:token
//
// Once the payload is syntactically valid the handler always acknowledges
// with 200 — unknown trades and stale transitions are application-level
// no-ops and must not trigger the aggregator's retry policy.
func (h *WebhookHandler) HandleStatusWebhook(c *fiber.Ctx) error {
	token := c.Params("token")
	if h.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		h.logger.Warn("swap.webhook.invalid_token",
			zap.String("token", utils.MaskToken(token)))
		metrics.IncWebhookEvent("rejected")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid token",
		})
	}

	var callback StatusCallback
	if err := c.BodyParser(&callback); err != nil {
		h.logger.Warn("swap.webhook.parse_error",
			zap.Error(err),
			zap.String("body", string(c.Body())))
		metrics.IncWebhookEvent("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}

	tradeID := callback.TradeID
	if tradeID == "" {
		tradeID = callback.ID
	}
	status := model.ParseSwapStatus(callback.Status)
	if tradeID == "" || !status.IsValid() {
		h.logger.Warn("swap.webhook.invalid_fields",
			zap.String("trade_id", tradeID),
			zap.String("status", callback.Status))
		metrics.IncWebhookEvent("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}

	h.logger.Info("swap.webhook.received",
		zap.String("trade_id", tradeID),
		zap.String("status", string(status)))

	outcome, _, err := h.service.ApplyStatusUpdate(c.UserContext(), tradeID, status, callback.Reason)
	if err != nil && !errors.Is(err, ErrUnknownTrade) {
		// Store failures are the one case worth a retry from upstream.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "update failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"result": outcome.String(),
	})
}
