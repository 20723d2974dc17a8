package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/internal/rate"
)

// Executor handles rate-limited, single-attempt HTTP execution with JSON
// decoding. Each call is one round trip: the upstream aggregator runs its
// own retry policy for webhooks, and swap initiation must be retried whole
// by the caller, so the executor never retries on its own.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	venueTag     string
	errorHandler func(status int, body []byte) error
}

// New creates an Executor. errorHandler is called on failure responses to
// produce a venue-specific error. If nil, a default error is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	venueTag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		venueTag:     venueTag,
		errorHandler: errorHandler,
	}
}

// DoJSON executes req with rate limiting, then JSON-decodes the response into
// out. rateLimitKey scopes the rate limiter per endpoint.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Warn(e.venueTag+".http_failed",
			zap.String("url", req.URL.Path),
			zap.Error(err))
		return fmt.Errorf("%s request failed: %w", e.venueTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode >= 400 {
		e.logger.Warn(e.venueTag+".http_error",
			zap.Int("status", resp.StatusCode),
			zap.String("url", req.URL.Path),
			zap.Duration("latency", elapsed))
		if e.errorHandler != nil {
			return e.errorHandler(resp.StatusCode, body)
		}
		return fmt.Errorf("%s returned %d", e.venueTag, resp.StatusCode)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.venueTag+".decode_failed",
				zap.Error(err),
				zap.String("url", req.URL.Path),
				zap.String("body", string(body)))
			return fmt.Errorf("decode failed: %w", err)
		}
	}

	e.logger.Debug(e.venueTag+".http_success",
		zap.String("url", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return nil
}
