// Package directory resolves symbols and (chain, address) pairs to canonical
// token records, backed by the token store and the configured chain adapters.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MetaSPN/metaspn-tokens/internal/adapter"
	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/identity"
	"github.com/MetaSPN/metaspn-tokens/internal/metrics"
	"github.com/MetaSPN/metaspn-tokens/internal/store"
)

// Seed is a reference token registered through EnsureSeeds. The seed set is
// explicit construction-time configuration, never package-global state, so
// tests can substitute alternate sets without process-wide effects.
type Seed struct {
	Symbol    string
	Name      string
	Chain     model.Chain
	Address   string
	ProjectID string
}

// DefaultSeeds returns the fixed reference token set.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Symbol:    "$TOWEL",
			Name:      "Towel Token",
			Chain:     model.ChainSolana,
			Address:   "ToWEL1111111111111111111111111111111111111",
			ProjectID: "proj_towel",
		},
		{
			Symbol:    "$METATOWEL",
			Name:      "Meta Towel",
			Chain:     model.ChainSolana,
			Address:   "MeTaTwEL1111111111111111111111111111111111",
			ProjectID: "proj_towel",
		},
	}
}

// Query selects a token by exactly one of Symbol or (Chain, Address).
type Query struct {
	Symbol  string
	Chain   model.Chain
	Address string
}

type Directory struct {
	tokens   store.TokenRepository
	adapters []adapter.TokenAdapter
	seeds    []Seed
	logger   *slog.Logger
}

func New(tokens store.TokenRepository, adapters []adapter.TokenAdapter, seeds []Seed, logger *slog.Logger) *Directory {
	return &Directory{
		tokens:   tokens,
		adapters: adapters,
		seeds:    seeds,
		logger:   logger.With("component", "directory"),
	}
}

// Resolve returns the canonical token for a query. Exactly one selector must
// be set; address-based resolution is authoritative and wins whenever it is
// supplied. Unresolvable input fails with model.ErrTokenNotFound.
func (d *Directory) Resolve(ctx context.Context, q Query) (*model.Token, error) {
	hasSymbol := q.Symbol != ""
	hasAddress := q.Address != ""

	switch {
	case hasSymbol && hasAddress:
		return nil, fmt.Errorf("supply symbol or (chain, address), not both: %w", model.ErrInvalidQuery)
	case !hasSymbol && !hasAddress:
		return nil, fmt.Errorf("supply symbol or (chain, address): %w", model.ErrInvalidQuery)
	case hasAddress && q.Chain == "":
		return nil, fmt.Errorf("address lookup requires a chain: %w", model.ErrInvalidQuery)
	}

	if hasAddress {
		return d.resolveByAddress(ctx, q.Chain, q.Address)
	}
	return d.resolveBySymbol(ctx, q.Symbol)
}

// TokenInfo is the read-only entry point for callers that only inspect a
// token; it shares Resolve's semantics.
func (d *Directory) TokenInfo(ctx context.Context, q Query) (*model.Token, error) {
	return d.Resolve(ctx, q)
}

// EnsureSeeds resolves every seed token, upserting from the seed definition
// when neither the store nor an adapter knows it, and links each to
// projectID. Safe to call repeatedly.
func (d *Directory) EnsureSeeds(ctx context.Context, projectID string) ([]model.Token, error) {
	tokens := make([]model.Token, 0, len(d.seeds))
	for _, seed := range d.seeds {
		token, err := d.resolveBySymbol(ctx, seed.Symbol)
		if err != nil {
			if !isNotFound(err) {
				return nil, fmt.Errorf("ensure seed %s: %w", seed.Symbol, err)
			}
			token, err = d.upsertSeed(ctx, seed)
			if err != nil {
				return nil, fmt.Errorf("ensure seed %s: %w", seed.Symbol, err)
			}
		}
		if projectID != "" {
			if err := d.tokens.LinkProject(ctx, token.TokenID, projectID, model.LinkRelationPrimary); err != nil {
				return nil, fmt.Errorf("link seed %s: %w", seed.Symbol, err)
			}
		}
		tokens = append(tokens, *token)
	}
	return tokens, nil
}

func (d *Directory) resolveBySymbol(ctx context.Context, symbol string) (*model.Token, error) {
	canonical, err := identity.CanonicalSymbol(symbol)
	if err != nil {
		return nil, err
	}

	existing, err := d.tokens.FindBySymbol(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	for _, a := range d.adapters {
		facts, err := a.FetchTokenBySymbol(ctx, canonical)
		if err != nil {
			metrics.AdapterLookups.WithLabelValues(a.Name(), metrics.ResultError).Inc()
			d.logger.Warn("adapter symbol lookup failed", "adapter", a.Name(), "symbol", canonical, "error", err)
			continue
		}
		if facts == nil || facts.Symbol == "" {
			metrics.AdapterLookups.WithLabelValues(a.Name(), metrics.ResultNotFound).Inc()
			continue
		}
		metrics.AdapterLookups.WithLabelValues(a.Name(), metrics.ResultOK).Inc()
		return d.upsertFacts(ctx, facts)
	}

	return nil, fmt.Errorf("symbol %s: %w", canonical, model.ErrTokenNotFound)
}

func (d *Directory) resolveByAddress(ctx context.Context, chain model.Chain, address string) (*model.Token, error) {
	existing, err := d.tokens.FindByChainAddress(ctx, chain, address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	for _, a := range d.adapters {
		facts, err := a.FetchTokenByAddress(ctx, chain, address)
		if err != nil {
			metrics.AdapterLookups.WithLabelValues(a.Name(), metrics.ResultError).Inc()
			d.logger.Warn("adapter address lookup failed", "adapter", a.Name(), "chain", chain, "address", address, "error", err)
			continue
		}
		// Symbol-less facts prove on-chain existence but cannot be stored as
		// directory records; keep trying the remaining adapters.
		if facts == nil || facts.Symbol == "" {
			metrics.AdapterLookups.WithLabelValues(a.Name(), metrics.ResultNotFound).Inc()
			continue
		}
		metrics.AdapterLookups.WithLabelValues(a.Name(), metrics.ResultOK).Inc()
		return d.upsertFacts(ctx, facts)
	}

	return nil, fmt.Errorf("%s address %s: %w", chain, address, model.ErrTokenNotFound)
}

func (d *Directory) upsertFacts(ctx context.Context, facts *adapter.TokenFacts) (*model.Token, error) {
	metadata, err := json.Marshal(facts.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal token metadata: %w", err)
	}
	return d.tokens.Upsert(ctx, &model.Token{
		TokenID:   model.NewTokenID(),
		Symbol:    facts.Symbol,
		Name:      facts.Name,
		Chain:     facts.Chain,
		Address:   facts.Address,
		ProjectID: facts.ProjectID,
		Metadata:  metadata,
	})
}

func (d *Directory) upsertSeed(ctx context.Context, seed Seed) (*model.Token, error) {
	canonical, err := identity.CanonicalSymbol(seed.Symbol)
	if err != nil {
		return nil, err
	}
	return d.tokens.Upsert(ctx, &model.Token{
		TokenID:   model.NewTokenID(),
		Symbol:    canonical,
		Name:      seed.Name,
		Chain:     seed.Chain,
		Address:   seed.Address,
		ProjectID: seed.ProjectID,
		Metadata:  []byte(`{"source":"seed"}`),
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrTokenNotFound)
}
