package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/internal/metrics"
	"github.com/streamtip/swap-adapter/internal/store"
	"github.com/streamtip/swap-adapter/internal/trocador"
	"github.com/streamtip/swap-adapter/pkg/model"
)

// ErrUnknownTrade means a status update referenced a trade identifier with no
// local swap record. Webhook delivery may race record creation, so this is
// reported, not escalated.
var ErrUnknownTrade = errors.New("unknown trade")

// InitiationError wraps any failure occurring before a swap record exists.
// Nothing was persisted, so the caller retries the whole initiation.
type InitiationError struct {
	Err error
}

func (e *InitiationError) Error() string { return "swap initiation failed: " + e.Err.Error() }
func (e *InitiationError) Unwrap() error { return e.Err }

// ApplyOutcome classifies the result of a status update.
type ApplyOutcome int

const (
	OutcomeApplied ApplyOutcome = iota
	OutcomeStale                // swap already terminal or update superseded
	OutcomeUnknown              // no local record for the trade identifier
)

func (o ApplyOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Catalog is the slice of the asset catalog the service needs.
type Catalog interface {
	Lookup(ctx context.Context, ticker, network string) (*model.Asset, error)
}

// QuoteSelector picks one provider offer for an asset and amount.
type QuoteSelector interface {
	RequestQuote(ctx context.Context, asset *model.Asset, amountTo decimal.Decimal) (*model.SelectedQuote, error)
}

// TradeGateway is the slice of the aggregator client the service needs.
type TradeGateway interface {
	NewTrade(ctx context.Context, req trocador.TradeRequest) (string, error)
	GetTrade(ctx context.Context, tradeID string) (*trocador.TradeSnapshot, error)
	Health(ctx context.Context) bool
}

// Store is the slice of the persistence layer the service needs.
type Store interface {
	InsertSwap(ctx context.Context, s model.Swap) error
	GetSwapByTradeID(ctx context.Context, tradeID string) (*model.Swap, error)
	MergeSwapStatus(ctx context.Context, tradeID string, reason string, merge func(current model.SwapStatus) (model.SwapStatus, bool)) (*model.Swap, bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
}

// Events publishes swap lifecycle events. Optional; a nil publisher disables
// event fan-out.
type Events interface {
	PublishStatusChanged(ctx context.Context, sw *model.Swap, source string) error
}

// InitiateRequest is the input to Initiate.
type InitiateRequest struct {
	Ticker   string
	Network  string
	AmountTo decimal.Decimal
	Address  string
}

// Service is the swap lifecycle manager: it creates trades against selected
// quotes and advances swap records from inbound status callbacks.
type Service struct {
	logger    *zap.Logger
	catalog   Catalog
	selector  QuoteSelector
	gateway   TradeGateway
	store     Store
	publisher Events

	publicBaseURL  string
	webhookToken   string
	healthCacheTTL time.Duration
}

// NewService constructs a fully wired swap lifecycle manager.
func NewService(
	logger *zap.Logger,
	catalog Catalog,
	selector QuoteSelector,
	gateway TradeGateway,
	st Store,
	pub Events,
	publicBaseURL string,
	webhookToken string,
	healthCacheTTL time.Duration,
) *Service {
	return &Service{
		logger:         logger,
		catalog:        catalog,
		selector:       selector,
		gateway:        gateway,
		store:          st,
		publisher:      pub,
		publicBaseURL:  publicBaseURL,
		webhookToken:   webhookToken,
		healthCacheTTL: healthCacheTTL,
	}
}

// WebhookURL returns the callback URL handed to the aggregator at
// trade-creation time. Possession of the embedded token authenticates
// inbound callbacks.
func (s *Service) WebhookURL() string {
	return s.publicBaseURL + "/webhooks/trocador/" + s.webhookToken
}

// Initiate selects a quote, creates the trade upstream and persists the swap
// record. The insert is the single commit point: any failure before it
// returns an InitiationError and leaves no local state, so the caller retries
// the whole initiation from scratch.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*model.Swap, error) {
	s.logger.Info("swap.initiate.start",
		zap.String("ticker", req.Ticker),
		zap.String("network", req.Network),
		zap.String("amount_to", req.AmountTo.String()))

	if req.Address == "" {
		metrics.IncSwapInitiation("invalid")
		return nil, &InitiationError{Err: fmt.Errorf("destination address is required")}
	}
	if !req.AmountTo.IsPositive() {
		metrics.IncSwapInitiation("invalid")
		return nil, &InitiationError{Err: fmt.Errorf("amount must be positive")}
	}

	asset, err := s.catalog.Lookup(ctx, req.Ticker, req.Network)
	if err != nil {
		metrics.IncSwapInitiation("invalid")
		if errors.Is(err, store.ErrNotFound) {
			return nil, &InitiationError{Err: fmt.Errorf("asset %s/%s is not supported", req.Ticker, req.Network)}
		}
		return nil, &InitiationError{Err: err}
	}
	if req.AmountTo.LessThan(asset.Minimum) || req.AmountTo.GreaterThan(asset.Maximum) {
		metrics.IncSwapInitiation("invalid")
		return nil, &InitiationError{Err: fmt.Errorf("amount %s outside tradable bounds [%s, %s]",
			req.AmountTo, asset.Minimum, asset.Maximum)}
	}

	selected, err := s.selector.RequestQuote(ctx, asset, req.AmountTo)
	if err != nil {
		if errors.Is(err, trocador.ErrNoQuoteAvailable) {
			metrics.IncSwapInitiation("no_quote")
		} else {
			metrics.IncSwapInitiation("gateway_error")
		}
		return nil, &InitiationError{Err: err}
	}

	tradeID, err := s.gateway.NewTrade(ctx, trocador.TradeRequest{
		RateID:     selected.RateID,
		Provider:   selected.Quote.Provider,
		Ticker:     asset.Ticker,
		Network:    asset.Network,
		AmountTo:   req.AmountTo,
		Address:    req.Address,
		WebhookURL: s.WebhookURL(),
	})
	if err != nil {
		metrics.IncSwapInitiation("gateway_error")
		s.logger.Error("swap.initiate.trade_failed",
			zap.String("provider", selected.Quote.Provider),
			zap.Error(err))
		return nil, &InitiationError{Err: err}
	}

	// One snapshot fetch to seed the initial state. A failure here is still
	// pre-commit: the upstream trade exists but nothing local does, and the
	// caller's retry creates a fresh trade.
	status := model.StatusWaiting
	if snapshot, err := s.gateway.GetTrade(ctx, tradeID); err != nil {
		metrics.IncSwapInitiation("gateway_error")
		s.logger.Warn("swap.initiate.snapshot_failed",
			zap.String("trade_id", tradeID),
			zap.Error(err))
		return nil, &InitiationError{Err: err}
	} else if parsed := model.ParseSwapStatus(snapshot.Status); parsed.IsValid() {
		status = parsed
	}

	now := time.Now().UTC()
	sw := model.Swap{
		ID:        uuid.New(),
		TradeID:   tradeID,
		Ticker:    asset.Ticker,
		Network:   asset.Network,
		AmountTo:  req.AmountTo,
		Address:   req.Address,
		Provider:  selected.Quote.Provider,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.InsertSwap(ctx, sw); err != nil {
		metrics.IncSwapInitiation("persist_error")
		// The upstream trade is orphaned; operators can reconcile it by
		// polling GET /trade with this identifier.
		s.logger.Error("swap.initiate.persist_failed",
			zap.String("trade_id", tradeID),
			zap.Error(err))
		return nil, &InitiationError{Err: fmt.Errorf("persist swap %s: %w", tradeID, err)}
	}

	metrics.IncSwapInitiation("created")
	s.logger.Info("swap.initiated",
		zap.String("trade_id", sw.TradeID),
		zap.String("provider", sw.Provider),
		zap.String("status", string(sw.Status)))

	if s.publisher != nil {
		if err := s.publisher.PublishStatusChanged(ctx, &sw, "initiate"); err != nil {
			s.logger.Warn("swap.publish_failed", zap.String("trade_id", sw.TradeID), zap.Error(err))
		}
	}

	return &sw, nil
}

// ApplyStatusUpdate merges an inbound status into the swap record, serialized
// per trade identifier by the store. Deliveries can be duplicated or arrive
// out of order; superseded and post-terminal updates come back as
// OutcomeStale and change nothing.
func (s *Service) ApplyStatusUpdate(ctx context.Context, tradeID string, incoming model.SwapStatus, reason string) (ApplyOutcome, *model.Swap, error) {
	sw, applied, err := s.store.MergeSwapStatus(ctx, tradeID, reason, func(current model.SwapStatus) (model.SwapStatus, bool) {
		next, ok := model.MergeStatus(current, incoming)
		return next, ok
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("swap.update.unknown_trade",
				zap.String("trade_id", tradeID),
				zap.String("status", string(incoming)))
			metrics.IncWebhookEvent("unknown")
			return OutcomeUnknown, nil, ErrUnknownTrade
		}
		metrics.IncError("swap", "status_merge_failed")
		return OutcomeUnknown, nil, fmt.Errorf("merge status for %s: %w", tradeID, err)
	}

	if !applied {
		s.logger.Debug("swap.update.stale",
			zap.String("trade_id", tradeID),
			zap.String("current", string(sw.Status)),
			zap.String("incoming", string(incoming)))
		metrics.IncWebhookEvent("stale")
		return OutcomeStale, sw, nil
	}

	metrics.IncWebhookEvent("applied")
	s.logger.Info("swap.status_changed",
		zap.String("trade_id", sw.TradeID),
		zap.String("status", string(sw.Status)),
		zap.String("reason", sw.Reason))

	if s.publisher != nil {
		if err := s.publisher.PublishStatusChanged(ctx, sw, "webhook"); err != nil {
			s.logger.Warn("swap.publish_failed", zap.String("trade_id", sw.TradeID), zap.Error(err))
		}
	}

	return OutcomeApplied, sw, nil
}

// GetSwap reads one swap by its external trade identifier.
func (s *Service) GetSwap(ctx context.Context, tradeID string) (*model.Swap, error) {
	sw, err := s.store.GetSwapByTradeID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownTrade
		}
		return nil, err
	}
	return sw, nil
}

// Reconcile re-fetches the upstream snapshot for a swap and merges its status
// locally. Covers missed webhook deliveries.
func (s *Service) Reconcile(ctx context.Context, tradeID string) (*model.Swap, error) {
	snapshot, err := s.gateway.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	status := model.ParseSwapStatus(snapshot.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("aggregator reported unknown status %q for %s", snapshot.Status, tradeID)
	}

	sw, _, err := s.store.MergeSwapStatus(ctx, tradeID, "", func(current model.SwapStatus) (model.SwapStatus, bool) {
		return model.MergeStatus(current, status)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownTrade
		}
		return nil, err
	}
	return sw, nil
}

// AggregatorAvailable reports whether the aggregator is reachable, cached
// briefly so health probes do not hammer the upstream API.
func (s *Service) AggregatorAvailable(ctx context.Context) bool {
	const key = "trocador:available"

	var cached bool
	if err := s.store.GetJSON(ctx, key, &cached); err == nil {
		return cached
	}

	available := s.gateway.Health(ctx)
	if err := s.store.SetJSON(ctx, key, available, s.healthCacheTTL); err != nil {
		s.logger.Debug("swap.health_cache_failed", zap.Error(err))
	}
	return available
}
