package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/internal/metrics"
	"github.com/streamtip/swap-adapter/internal/store"
	"github.com/streamtip/swap-adapter/pkg/model"
)

// SyncError means a catalog refresh failed. The local cache is left as it
// was; a failed sync never truncates previously mirrored assets.
type SyncError struct {
	Err error
}

func (e *SyncError) Error() string { return "catalog sync failed: " + e.Err.Error() }
func (e *SyncError) Unwrap() error { return e.Err }

// Gateway is the slice of the aggregator client the syncer needs.
type Gateway interface {
	ListCoins(ctx context.Context) ([]model.Asset, error)
}

// Store is the slice of the persistence layer the syncer needs.
type Store interface {
	UpsertAsset(ctx context.Context, a model.Asset) error
	GetAsset(ctx context.Context, ticker, network string) (*model.Asset, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
}

// Syncer mirrors the aggregator's supported-asset catalog into the local
// store. The mirror is additive: refresh upserts on (name, ticker, network)
// and never deletes rows that disappear upstream.
type Syncer struct {
	logger   *zap.Logger
	gateway  Gateway
	store    Store
	interval time.Duration
	cacheTTL time.Duration
	stopCh   chan struct{}
}

// NewSyncer constructs a catalog syncer. interval is the scheduled refresh
// period (daily in production).
func NewSyncer(logger *zap.Logger, gateway Gateway, st Store, interval, cacheTTL time.Duration) *Syncer {
	return &Syncer{
		logger:   logger,
		gateway:  gateway,
		store:    st,
		interval: interval,
		cacheTTL: cacheTTL,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the refresh loop: once immediately, then on every tick.
func (s *Syncer) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("catalog.sync_started", zap.Duration("interval", s.interval))

	for {
		if _, err := s.RefreshOnce(ctx); err != nil {
			s.logger.Warn("catalog.sync_failed", zap.Error(err))
			metrics.IncError("catalog", "sync_failed")
		}

		select {
		case <-ticker.C:
			continue
		case <-s.stopCh:
			s.logger.Info("catalog.sync_stopped")
			return
		case <-ctx.Done():
			s.logger.Info("catalog.sync_stopped")
			return
		}
	}
}

// Stop signals the refresh loop to stop gracefully.
func (s *Syncer) Stop() {
	close(s.stopCh)
}

// RefreshOnce fetches the full asset list and merges it into the store,
// returning the number of upserted assets. A failed or empty fetch returns a
// SyncError and leaves the existing mirror untouched. Safe to call on demand;
// re-running with identical upstream data is a no-op.
func (s *Syncer) RefreshOnce(ctx context.Context) (int, error) {
	assets, err := s.gateway.ListCoins(ctx)
	if err != nil {
		return 0, &SyncError{Err: err}
	}
	if len(assets) == 0 {
		return 0, &SyncError{Err: fmt.Errorf("aggregator returned empty asset list")}
	}

	count := 0
	for _, a := range assets {
		if err := s.store.UpsertAsset(ctx, a); err != nil {
			s.logger.Warn("catalog.asset_upsert_failed",
				zap.String("ticker", a.Ticker),
				zap.String("network", a.Network),
				zap.Error(err))
			continue
		}
		count++
	}

	if count == 0 {
		return 0, &SyncError{Err: fmt.Errorf("no assets could be upserted")}
	}

	metrics.CatalogSyncTimestamp.SetToCurrentTime()
	metrics.CatalogAssetsUpserted.Set(float64(count))

	s.logger.Info("catalog.sync_complete",
		zap.Int("fetched", len(assets)),
		zap.Int("upserted", count))

	return count, nil
}

// Lookup reads one asset by (ticker, network), Redis-cached with a Postgres
// fallback. Returns store.ErrNotFound for assets outside the catalog.
func (s *Syncer) Lookup(ctx context.Context, ticker, network string) (*model.Asset, error) {
	key := assetCacheKey(ticker, network)

	var cached model.Asset
	if err := s.store.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("catalog.cache_read_failed", zap.String("key", key), zap.Error(err))
	}

	asset, err := s.store.GetAsset(ctx, ticker, network)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetJSON(ctx, key, asset, s.cacheTTL); err != nil {
		s.logger.Debug("catalog.cache_fill_failed", zap.String("key", key), zap.Error(err))
	}
	return asset, nil
}

func assetCacheKey(ticker, network string) string {
	return fmt.Sprintf("asset:%s:%s", ticker, network)
}
