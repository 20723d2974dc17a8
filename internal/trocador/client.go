package trocador

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/internal/httpclient"
	"github.com/streamtip/swap-adapter/internal/metrics"
	"github.com/streamtip/swap-adapter/internal/rate"
	"github.com/streamtip/swap-adapter/internal/secrets"
	"github.com/streamtip/swap-adapter/pkg/model"
)

// Options configures the settlement target and compliance floor applied to
// every rate and trade request.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	TargetTicker  string // settlement asset, e.g. "xmr"
	TargetNetwork string // e.g. "Mainnet"
	MinKYCRating  string // floor passed upstream on rate requests
}

// Client wraps low-level HTTP communication with the Trocador aggregator API.
// Every operation is a single synchronous round trip; there is no client-side
// retry. The API credential is resolved through the resolver supplied at
// construction so key rotation needs no restart.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	creds  *secrets.Resolver
	opts   Options
}

// NewClient constructs a new Trocador HTTP client instance.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, creds *secrets.Resolver, opts Options) *Client {
	httpClient := &http.Client{Timeout: opts.Timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, "trocador", func(status int, body []byte) error {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)

		logger.Warn("trocador.client_error",
			zap.Int("status", status),
			zap.String("error", errResp.Error),
			zap.String("body", string(body)))

		msg := errResp.Error
		if msg == "" {
			msg = string(body)
		}
		return &GatewayError{Status: status, Message: msg}
	})
	return &Client{
		logger: logger,
		exec:   exec,
		creds:  creds,
		opts:   opts,
	}
}

// ListCoins fetches the full supported-asset catalog.
// GET /coins
func (c *Client) ListCoins(ctx context.Context) ([]model.Asset, error) {
	var coins []Coin
	if err := c.getJSON(ctx, "/coins", nil, &coins); err != nil {
		metrics.IncTrocadorRequest("coins", "error")
		return nil, err
	}
	metrics.IncTrocadorRequest("coins", "ok")

	assets := make([]model.Asset, 0, len(coins))
	for _, coin := range coins {
		assets = append(assets, model.Asset{
			Name:    coin.Name,
			Ticker:  coin.Ticker,
			Network: coin.Network,
			Image:   coin.Image,
			Minimum: coin.Minimum,
			Maximum: coin.Maximum,
		})
	}
	return assets, nil
}

// NewRate requests competing offers for converting the given source asset
// into the configured settlement target. Returns the aggregator-issued rate
// identifier alongside the offers.
// GET /new_rate
func (c *Client) NewRate(ctx context.Context, ticker, network string, amountTo decimal.Decimal) (string, []model.Quote, error) {
	params := url.Values{}
	params.Set("ticker_from", ticker)
	params.Set("network_from", network)
	params.Set("ticker_to", c.opts.TargetTicker)
	params.Set("network_to", c.opts.TargetNetwork)
	params.Set("amount_to", amountTo.String())
	params.Set("payment", "true")
	params.Set("min_kycrating", c.opts.MinKYCRating)

	var resp RateResponse
	if err := c.getJSON(ctx, "/new_rate", params, &resp); err != nil {
		metrics.IncTrocadorRequest("new_rate", "error")
		return "", nil, err
	}
	metrics.IncTrocadorRequest("new_rate", "ok")

	quotes := make([]model.Quote, 0, len(resp.Quotes.Quotes))
	for _, q := range resp.Quotes.Quotes {
		quotes = append(quotes, model.Quote{
			Provider:  q.Provider,
			ETA:       q.ETA,
			KYCRating: q.KYCRating,
		})
	}
	return resp.TradeID, quotes, nil
}

// NewTrade creates a trade against a previously issued rate id and the chosen
// provider, registering the webhook callback URL with the aggregator.
// GET /new_trade
func (c *Client) NewTrade(ctx context.Context, req TradeRequest) (string, error) {
	params := url.Values{}
	params.Set("ticker_from", req.Ticker)
	params.Set("network_from", req.Network)
	params.Set("ticker_to", c.opts.TargetTicker)
	params.Set("network_to", c.opts.TargetNetwork)
	params.Set("amount_to", req.AmountTo.String())
	params.Set("address", req.Address)
	params.Set("payment", "true")
	params.Set("min_kycrating", c.opts.MinKYCRating)
	params.Set("id", req.RateID)
	params.Set("provider", req.Provider)
	params.Set("webhook", req.WebhookURL)

	var resp TradeResponse
	if err := c.getJSON(ctx, "/new_trade", params, &resp); err != nil {
		metrics.IncTrocadorRequest("new_trade", "error")
		return "", err
	}
	metrics.IncTrocadorRequest("new_trade", "ok")

	if resp.TradeID == "" {
		return "", &GatewayError{Message: "new_trade returned no trade id"}
	}
	return resp.TradeID, nil
}

// GetTrade retrieves the current snapshot of a trade. The aggregator returns
// an array; the first element is the live record.
// GET /trade
func (c *Client) GetTrade(ctx context.Context, tradeID string) (*TradeSnapshot, error) {
	params := url.Values{}
	params.Set("id", tradeID)

	var snapshots []TradeSnapshot
	if err := c.getJSON(ctx, "/trade", params, &snapshots); err != nil {
		metrics.IncTrocadorRequest("trade", "error")
		return nil, err
	}
	metrics.IncTrocadorRequest("trade", "ok")

	if len(snapshots) == 0 {
		return nil, &GatewayError{Message: fmt.Sprintf("trade %s not found", tradeID)}
	}
	return &snapshots[0], nil
}

// Health reports whether the aggregator is reachable. Without a credential
// the aggregator is considered unavailable and no call is attempted.
// GET /exchanges
func (c *Client) Health(ctx context.Context) bool {
	cred, err := c.creds.Resolve(ctx)
	if err != nil || cred.APIKey == "" {
		return false
	}
	if err := c.getJSON(ctx, "/exchanges", nil, nil); err != nil {
		c.logger.Warn("trocador.health_failed", zap.Error(err))
		return false
	}
	return true
}

// getJSON performs an authenticated GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	cred, err := c.creds.Resolve(ctx)
	if err != nil {
		return &GatewayError{Err: err}
	}

	endpoint := c.opts.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &GatewayError{Err: err}
	}
	req.Header.Set("API-Key", cred.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	if err := c.exec.DoJSON(ctx, req, "trocador_api:"+path, out); err != nil {
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			return err
		}
		return &GatewayError{Err: err}
	}
	metrics.ObserveDuration(metrics.TrocadorRequestDuration, start, path)
	return nil
}
