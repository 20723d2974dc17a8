package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/pkg/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the contract for persisting catalog assets and swap records.
type Store interface {
	UpsertAsset(ctx context.Context, a model.Asset) error
	GetAsset(ctx context.Context, ticker, network string) (*model.Asset, error)
	ListAssets(ctx context.Context) ([]model.Asset, error)
	InsertSwap(ctx context.Context, s model.Swap) error
	GetSwapByTradeID(ctx context.Context, tradeID string) (*model.Swap, error)
	MergeSwapStatus(ctx context.Context, tradeID string, reason string, merge func(current model.SwapStatus) (model.SwapStatus, bool)) (*model.Swap, bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore is a Redis-cached, Postgres-backed store. Postgres is the
// system of record; Redis only accelerates catalog lookups and short-lived
// health results.
type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// UpsertAsset inserts or refreshes a catalog row. The upsert is keyed on the
// (name, ticker, network) identity tuple and is idempotent; rows absent from
// an upstream sync are left in place.
func (s *HybridStore) UpsertAsset(ctx context.Context, a model.Asset) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO reference.assets (name, ticker, network, image, minimum, maximum, as_of)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (name, ticker, network)
		DO UPDATE SET
			image = EXCLUDED.image,
			minimum = EXCLUDED.minimum,
			maximum = EXCLUDED.maximum,
			as_of = EXCLUDED.as_of;
	`, a.Name, a.Ticker, a.Network, a.Image, a.Minimum, a.Maximum)
	if err != nil {
		s.logger.Error("store.pg.asset_upsert_failed", zap.Error(err))
	}
	return err
}

// GetAsset reads one asset by (ticker, network).
func (s *HybridStore) GetAsset(ctx context.Context, ticker, network string) (*model.Asset, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	row := s.PG.QueryRow(ctx, `
		SELECT name, ticker, network, image, minimum, maximum
		FROM reference.assets
		WHERE LOWER(ticker) = LOWER($1) AND LOWER(network) = LOWER($2)
		LIMIT 1;
	`, ticker, network)

	var a model.Asset
	if err := row.Scan(&a.Name, &a.Ticker, &a.Network, &a.Image, &a.Minimum, &a.Maximum); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetAsset scan failed: %w", err)
	}
	return &a, nil
}

// ListAssets returns the full mirrored catalog.
func (s *HybridStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT name, ticker, network, image, minimum, maximum
		FROM reference.assets
		ORDER BY ticker, network;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.Name, &a.Ticker, &a.Network, &a.Image, &a.Minimum, &a.Maximum); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// InsertSwap persists a freshly created swap record. trade_id carries a
// unique constraint; a conflict means the external identifier was reused and
// is an error.
func (s *HybridStore) InsertSwap(ctx context.Context, sw model.Swap) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO activity.swaps (
			id, trade_id, ticker, network, amount_to, address,
			provider, status, reason, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sw.ID, sw.TradeID, sw.Ticker, sw.Network, sw.AmountTo, sw.Address,
		sw.Provider, sw.Status, nullable(sw.Reason), sw.CreatedAt, sw.UpdatedAt)
	if err != nil {
		s.logger.Error("store.pg.swap_insert_failed",
			zap.String("trade_id", sw.TradeID),
			zap.Error(err))
	}
	return err
}

// GetSwapByTradeID reads one swap by its external trade identifier.
func (s *HybridStore) GetSwapByTradeID(ctx context.Context, tradeID string) (*model.Swap, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	return scanSwap(s.PG.QueryRow(ctx, `
		SELECT id, trade_id, ticker, network, amount_to, address,
		       provider, status, COALESCE(reason, ''), created_at, updated_at
		FROM activity.swaps
		WHERE trade_id = $1
		LIMIT 1;
	`, tradeID))
}

// MergeSwapStatus applies merge to the swap's current status under a row
// lock, serializing concurrent webhook deliveries for the same trade_id.
// It returns the (possibly unchanged) record and whether the merge applied.
// Unknown trade identifiers return ErrNotFound.
func (s *HybridStore) MergeSwapStatus(ctx context.Context, tradeID string, reason string, merge func(current model.SwapStatus) (model.SwapStatus, bool)) (*model.Swap, bool, error) {
	if s.PG == nil {
		return nil, false, fmt.Errorf("postgres unavailable")
	}

	tx, err := s.PG.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current model.SwapStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM activity.swaps WHERE trade_id = $1 FOR UPDATE;
	`, tradeID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("lock swap row: %w", err)
	}

	next, applied := merge(current)
	if applied {
		_, err = tx.Exec(ctx, `
			UPDATE activity.swaps
			SET status = $2, reason = COALESCE(NULLIF($3, ''), reason), updated_at = NOW()
			WHERE trade_id = $1;
		`, tradeID, next, reason)
		if err != nil {
			return nil, false, fmt.Errorf("update swap status: %w", err)
		}
	}

	sw, err := scanSwap(tx.QueryRow(ctx, `
		SELECT id, trade_id, ticker, network, amount_to, address,
		       provider, status, COALESCE(reason, ''), created_at, updated_at
		FROM activity.swaps
		WHERE trade_id = $1;
	`, tradeID))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit swap status: %w", err)
	}
	return sw, applied, nil
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSwap(row rowScanner) (*model.Swap, error) {
	var sw model.Swap
	err := row.Scan(&sw.ID, &sw.TradeID, &sw.Ticker, &sw.Network, &sw.AmountTo,
		&sw.Address, &sw.Provider, &sw.Status, &sw.Reason, &sw.CreatedAt, &sw.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan swap failed: %w", err)
	}
	return &sw, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
