package trocador

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/streamtip/swap-adapter/pkg/model"
)

// ErrNoQuoteAvailable means no provider offer survived filtering for a rate
// request. Surfaced to the swap requester as a "try again" condition.
var ErrNoQuoteAvailable = errors.New("no quote available")

// SelectionPolicy is the pure ranking/filter policy applied to a list of
// competing quotes. Speed is the primary user-visible metric, but the
// rating+latency gate keeps fast, well-vetted providers ahead of
// stricter-rated slow ones.
type SelectionPolicy struct {
	ExcludedProviders []string // operational/compliance denylist
	PreferredRatings  []string // ratings eligible for the fast path
	PreferredMaxETA   float64  // minutes; fast-path latency gate
}

func (p SelectionPolicy) excluded(provider string) bool {
	for _, e := range p.ExcludedProviders {
		if e == provider {
			return true
		}
	}
	return false
}

func (p SelectionPolicy) preferredRating(rating string) bool {
	for _, r := range p.PreferredRatings {
		if r == rating {
			return true
		}
	}
	return false
}

// SelectQuote picks one offer from the candidate list:
//
//  1. drop quotes from excluded providers
//  2. stable sort ascending by ETA
//  3. prefer the first quote with a preferred rating and ETA within the gate
//  4. otherwise fall back to the fastest remaining quote regardless of rating
//  5. with nothing left, fail with ErrNoQuoteAvailable
func SelectQuote(rateID string, quotes []model.Quote, policy SelectionPolicy) (*model.SelectedQuote, error) {
	candidates := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		if !policy.excluded(q.Provider) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoQuoteAvailable
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ETA < candidates[j].ETA
	})

	selected := candidates[0]
	for _, q := range candidates {
		if policy.preferredRating(q.KYCRating) && q.ETA <= policy.PreferredMaxETA {
			selected = q
			break
		}
	}

	return &model.SelectedQuote{RateID: rateID, Quote: selected}, nil
}

// RateGateway is the slice of the client the selector needs.
type RateGateway interface {
	NewRate(ctx context.Context, ticker, network string, amountTo decimal.Decimal) (string, []model.Quote, error)
}

// Selector couples the rate request with the selection policy. The policy
// itself stays a pure function so it is testable without network access.
type Selector struct {
	logger *zap.Logger
	client RateGateway
	policy SelectionPolicy
}

// NewSelector constructs a Selector over the given gateway client.
func NewSelector(logger *zap.Logger, client RateGateway, policy SelectionPolicy) *Selector {
	return &Selector{
		logger: logger,
		client: client,
		policy: policy,
	}
}

// RequestQuote fetches competing offers for the asset and picks one per the
// policy.
func (s *Selector) RequestQuote(ctx context.Context, asset *model.Asset, amountTo decimal.Decimal) (*model.SelectedQuote, error) {
	rateID, quotes, err := s.client.NewRate(ctx, asset.Ticker, asset.Network, amountTo)
	if err != nil {
		return nil, err
	}

	selected, err := SelectQuote(rateID, quotes, s.policy)
	if err != nil {
		s.logger.Warn("trocador.select_quote.no_candidates",
			zap.String("ticker", asset.Ticker),
			zap.String("network", asset.Network),
			zap.Int("offers", len(quotes)))
		return nil, err
	}

	s.logger.Info("trocador.quote_selected",
		zap.String("rate_id", selected.RateID),
		zap.String("provider", selected.Quote.Provider),
		zap.Float64("eta", selected.Quote.ETA),
		zap.String("kyc", selected.Quote.KYCRating),
		zap.Int("candidates", len(quotes)))

	return selected, nil
}
