// Package pumpfun resolves token facts from a Pump.fun-style coin API, with a
// fixed bootstrap table as fallback when no base URL is configured.
package pumpfun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/adapter"
	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/identity"
	"golang.org/x/time/rate"
)

type Adapter struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger

	bySymbol map[string]adapter.TokenFacts
}

var _ adapter.TokenAdapter = (*Adapter)(nil)

// NewAdapter builds the adapter. baseURL may be empty, in which case lookups
// are answered from the bootstrap table alone.
func NewAdapter(baseURL string, rps float64, logger *slog.Logger) *Adapter {
	if rps <= 0 {
		rps = 2
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.With("adapter", "pumpfun"),
		bySymbol:   bootstrapRegistry(),
	}
}

func (a *Adapter) Name() string {
	return "pumpfun"
}

func (a *Adapter) FetchTokenBySymbol(ctx context.Context, symbol string) (*adapter.TokenFacts, error) {
	canonical, err := identity.CanonicalSymbol(symbol)
	if err != nil {
		return nil, nil
	}
	facts, ok := a.bySymbol[canonical]
	if !ok {
		return nil, nil
	}
	return &facts, nil
}

func (a *Adapter) FetchTokenByAddress(ctx context.Context, chain model.Chain, address string) (*adapter.TokenFacts, error) {
	if chain != model.ChainSolana || address == "" {
		return nil, nil
	}

	for _, facts := range a.bySymbol {
		if facts.Address == address {
			return &facts, nil
		}
	}

	if a.baseURL == "" {
		return nil, nil
	}
	return a.fetchCoin(ctx, address)
}

type coinResponse struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

func (a *Adapter) fetchCoin(ctx context.Context, mint string) (*adapter.TokenFacts, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/coins/"+mint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var coin coinResponse
	if err := json.Unmarshal(body, &coin); err != nil {
		return nil, fmt.Errorf("unmarshal coin: %w", err)
	}
	if coin.Mint == "" {
		return nil, nil
	}

	symbol := ""
	if coin.Symbol != "" {
		if canonical, err := identity.CanonicalSymbol(coin.Symbol); err == nil {
			symbol = canonical
		}
	}
	return &adapter.TokenFacts{
		Symbol:   symbol,
		Name:     coin.Name,
		Chain:    model.ChainSolana,
		Address:  coin.Mint,
		Metadata: map[string]string{"source": "pumpfun", "launchpad": "pumpfun"},
	}, nil
}

func bootstrapRegistry() map[string]adapter.TokenFacts {
	return map[string]adapter.TokenFacts{
		"$TOWEL": {
			Symbol:    "$TOWEL",
			Name:      "Towel Token",
			Chain:     model.ChainSolana,
			Address:   "Ak9ptp86tfJMrKwBwoe49pNkHxPjZk8GRQxZKB78pump",
			ProjectID: "proj_towel",
			Metadata:  map[string]string{"source": "pumpfun", "launchpad": "pumpfun"},
		},
		"$METATOWEL": {
			Symbol:    "$METATOWEL",
			Name:      "Meta Towel",
			Chain:     model.ChainSolana,
			Address:   "CtsDk7Mo1wwhxhQp6zqB2oHEFXPEHhgjTBE8VvcUpump",
			ProjectID: "proj_towel",
			Metadata:  map[string]string{"source": "pumpfun", "launchpad": "pumpfun"},
		},
	}
}
