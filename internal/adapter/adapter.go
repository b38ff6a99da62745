// Package adapter defines the capability contract for chain-fact sources.
// The directory and scorecard depend only on this interface, never on a
// concrete adapter.
package adapter

import (
	"context"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

// TokenFacts is externally observed token metadata supplied by an adapter.
type TokenFacts struct {
	Symbol    string
	Name      string
	Chain     model.Chain
	Address   string
	ProjectID string
	Metadata  map[string]string
}

// TokenAdapter abstracts a chain-data source. Lookups return (nil, nil) when
// the source does not know the token; errors are reserved for transport
// failures. Symbol lookup is best-effort and chain-ambiguous; address lookup
// is authoritative.
type TokenAdapter interface {
	Name() string
	FetchTokenBySymbol(ctx context.Context, symbol string) (*TokenFacts, error)
	FetchTokenByAddress(ctx context.Context, chain model.Chain, address string) (*TokenFacts, error)
}
