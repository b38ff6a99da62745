package pumpfun

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

func TestFetchTokenBySymbolBootstrap(t *testing.T) {
	a := NewAdapter("", 0, slog.Default())
	ctx := context.Background()

	facts, err := a.FetchTokenBySymbol(ctx, "towel")
	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, "$TOWEL", facts.Symbol)
	assert.Equal(t, "proj_towel", facts.ProjectID)
	assert.Equal(t, model.ChainSolana, facts.Chain)

	unknown, err := a.FetchTokenBySymbol(ctx, "$NOPE")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestFetchTokenByAddressFromCoinAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coins/KnownMint111":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"mint":"KnownMint111","symbol":"demo","name":"Demo Coin"}`))
		case "/coins/GoneMint111":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	a := NewAdapter(server.URL, 100, slog.Default())
	ctx := context.Background()

	facts, err := a.FetchTokenByAddress(ctx, model.ChainSolana, "KnownMint111")
	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, "$DEMO", facts.Symbol)
	assert.Equal(t, "Demo Coin", facts.Name)
	assert.Equal(t, "KnownMint111", facts.Address)

	// 404 means the launchpad does not know the mint, which is not an error.
	missing, err := a.FetchTokenByAddress(ctx, model.ChainSolana, "GoneMint111")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = a.FetchTokenByAddress(ctx, model.ChainSolana, "BrokenMint111")
	assert.Error(t, err)
}

func TestFetchTokenByAddressIgnoresOtherChains(t *testing.T) {
	a := NewAdapter("http://unused.invalid", 0, slog.Default())

	facts, err := a.FetchTokenByAddress(context.Background(), model.ChainUnknown, "whatever")
	require.NoError(t, err)
	assert.Nil(t, facts)
}

func TestFetchTokenByAddressBootstrapShortCircuits(t *testing.T) {
	// No server configured; bootstrap addresses still resolve.
	a := NewAdapter("", 0, slog.Default())

	facts, err := a.FetchTokenByAddress(context.Background(), model.ChainSolana, "Ak9ptp86tfJMrKwBwoe49pNkHxPjZk8GRQxZKB78pump")
	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, "$TOWEL", facts.Symbol)
}
