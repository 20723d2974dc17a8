package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/internal/swap"
	"github.com/streamtip/swap-adapter/internal/trocador"
	"github.com/streamtip/swap-adapter/pkg/model"
)

// SwapService defines the lifecycle operations needed by the handler.
type SwapService interface {
	Initiate(ctx context.Context, req swap.InitiateRequest) (*model.Swap, error)
	GetSwap(ctx context.Context, tradeID string) (*model.Swap, error)
	Reconcile(ctx context.Context, tradeID string) (*model.Swap, error)
	AggregatorAvailable(ctx context.Context) bool
}

// CatalogService defines the catalog operations needed by the handler.
type CatalogService interface {
	RefreshOnce(ctx context.Context) (int, error)
}

// AssetLister reads the mirrored catalog.
type AssetLister interface {
	ListAssets(ctx context.Context) ([]model.Asset, error)
}

// SwapHandler handles HTTP API requests for swap operations.
type SwapHandler struct {
	logger  *zap.Logger
	service SwapService
	catalog CatalogService
	assets  AssetLister
}

// NewSwapHandler creates a new SwapHandler.
func NewSwapHandler(logger *zap.Logger, service SwapService, catalog CatalogService, assets AssetLister) *SwapHandler {
	return &SwapHandler{
		logger:  logger,
		service: service,
		catalog: catalog,
		assets:  assets,
	}
}

// InitiateSwapHandler handles swap creation requests.
// POST /api/v1/swaps
func (h *SwapHandler) InitiateSwapHandler(c *fiber.Ctx) error {
	var req SwapCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sw, err := h.service.Initiate(c.Context(), swap.InitiateRequest{
		Ticker:   req.Ticker,
		Network:  req.Network,
		AmountTo: req.AmountTo,
		Address:  req.Address,
	})
	if err != nil {
		h.logger.Error("api.initiate_swap.failed",
			zap.String("ticker", req.Ticker),
			zap.Error(err))
		return c.Status(initiateErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(toSwapResponse(sw))
}

// GetSwapHandler returns the current state of a swap.
// GET /api/v1/swaps/:tradeId
func (h *SwapHandler) GetSwapHandler(c *fiber.Ctx) error {
	tradeID := c.Params("tradeId")
	if tradeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tradeId is required"})
	}

	sw, err := h.service.GetSwap(c.Context(), tradeID)
	if err != nil {
		if errors.Is(err, swap.ErrUnknownTrade) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "swap not found"})
		}
		h.logger.Error("api.get_swap.failed", zap.String("trade_id", tradeID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	return c.Status(fiber.StatusOK).JSON(toSwapResponse(sw))
}

// ReconcileSwapHandler re-fetches the upstream trade snapshot and merges its
// status into the local record. Covers webhook deliveries that were lost for
// good (e.g. while the store was down).
// POST /api/v1/swaps/:tradeId/reconcile
func (h *SwapHandler) ReconcileSwapHandler(c *fiber.Ctx) error {
	tradeID := c.Params("tradeId")
	if tradeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tradeId is required"})
	}

	sw, err := h.service.Reconcile(c.Context(), tradeID)
	if err != nil {
		if errors.Is(err, swap.ErrUnknownTrade) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "swap not found"})
		}
		var gerr *trocador.GatewayError
		if errors.As(err, &gerr) {
			h.logger.Warn("api.reconcile.gateway_failed", zap.String("trade_id", tradeID), zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.Error("api.reconcile.failed", zap.String("trade_id", tradeID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconcile failed"})
	}

	return c.Status(fiber.StatusOK).JSON(toSwapResponse(sw))
}

// ListAssetsHandler returns the mirrored asset catalog.
// GET /api/v1/assets
func (h *SwapHandler) ListAssetsHandler(c *fiber.Ctx) error {
	assets, err := h.assets.ListAssets(c.Context())
	if err != nil {
		h.logger.Error("api.list_assets.failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "catalog unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"assets": assets})
}

// RefreshCatalogHandler triggers an on-demand catalog refresh.
// POST /api/v1/catalog/refresh
func (h *SwapHandler) RefreshCatalogHandler(c *fiber.Ctx) error {
	count, err := h.catalog.RefreshOnce(c.Context())
	if err != nil {
		h.logger.Error("api.catalog_refresh.failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"upserted": count})
}

// initiateErrorStatus maps initiation failures onto HTTP statuses: user
// errors come back 400, an empty quote list is a retryable 409, everything
// reaching the aggregator and failing is 502.
func initiateErrorStatus(err error) int {
	if errors.Is(err, trocador.ErrNoQuoteAvailable) {
		return fiber.StatusConflict
	}
	var gerr *trocador.GatewayError
	if errors.As(err, &gerr) {
		return fiber.StatusBadGateway
	}
	return fiber.StatusBadRequest
}

func toSwapResponse(sw *model.Swap) SwapResponse {
	return SwapResponse{
		TradeID:   sw.TradeID,
		Ticker:    sw.Ticker,
		Network:   sw.Network,
		AmountTo:  sw.AmountTo.String(),
		Address:   sw.Address,
		Provider:  sw.Provider,
		Status:    string(sw.Status),
		Reason:    sw.Reason,
		CreatedAt: sw.CreatedAt.Unix(),
		UpdatedAt: sw.UpdatedAt.Unix(),
	}
}
