package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamtip/swap-adapter/internal/store"
	"github.com/streamtip/swap-adapter/internal/swap"
)

// RegisterRoutes wires all HTTP routes onto the fiber app.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store,
	swapService SwapService,
	swapHandler *SwapHandler,
	webhookHandler *swap.WebhookHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":       "ok",
			"store":      "ok",
			"aggregator": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc == nil || !nc.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		// Aggregator unavailability degrades swaps but the service itself
		// keeps serving webhooks and reads.
		if !swapService.AggregatorAvailable(healthCtx) {
			checks["aggregator"] = "unavailable"
			if status == "ok" {
				status = "degraded"
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	// API routes
	v1 := app.Group("/api/v1")
	v1.Post("/swaps", swapHandler.InitiateSwapHandler)
	v1.Get("/swaps/:tradeId", swapHandler.GetSwapHandler)
	v1.Post("/swaps/:tradeId/reconcile", swapHandler.ReconcileSwapHandler)
	v1.Get("/assets", swapHandler.ListAssetsHandler)
	v1.Post("/catalog/refresh", swapHandler.RefreshCatalogHandler)

	// Webhook route (token authenticates the caller)
	app.Post("/webhooks/trocador/:token", webhookHandler.HandleStatusWebhook)
}
