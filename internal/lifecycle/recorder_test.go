package lifecycle

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MetaSPN/metaspn-tokens/internal/directory"
	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/feed"
	"github.com/MetaSPN/metaspn-tokens/internal/registry"
	"github.com/MetaSPN/metaspn-tokens/internal/scoring"
	"github.com/MetaSPN/metaspn-tokens/internal/store/sqldb"
)

type testEnv struct {
	recorder *Recorder
	registry *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqldb.New(sqldb.Config{Driver: sqldb.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	promises := sqldb.NewPromiseRepo(db)
	evals := sqldb.NewEvaluationRepo(db)
	life := sqldb.NewLifecycleRepo(db)
	dir := directory.New(sqldb.NewTokenRepo(db), nil, directory.DefaultSeeds(), slog.Default())
	reg := registry.New(db, promises, evals, life, dir, feed.NewMemoryFeed(), slog.Default())
	scorer := scoring.NewScorer(promises, evals)

	return &testEnv{
		recorder: NewRecorder(life, scorer, slog.Default()),
		registry: reg,
	}
}

func TestRecordRewardPoolFundingIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := FundingInput{
		ProjectID: "proj_towel",
		TokenID:   "tok_test",
		Amount:    1000,
		TxHash:    "sig1",
		FundedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:    "treasury",
	}
	first, err := env.recorder.RecordRewardPoolFunding(ctx, in)
	require.NoError(t, err)

	second, err := env.recorder.RecordRewardPoolFunding(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.FundingID, second.FundingID)

	fundings, err := env.recorder.ListFundings(ctx, "proj_towel")
	require.NoError(t, err)
	assert.Len(t, fundings, 1)
}

func TestRecordRewardPoolFundingValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   FundingInput
	}{
		{"empty project", FundingInput{TokenID: "tok", Amount: 1, TxHash: "sig"}},
		{"empty token", FundingInput{ProjectID: "p", Amount: 1, TxHash: "sig"}},
		{"zero amount", FundingInput{ProjectID: "p", TokenID: "tok", TxHash: "sig"}},
		{"empty tx hash", FundingInput{ProjectID: "p", TokenID: "tok", Amount: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.recorder.RecordRewardPoolFunding(ctx, tc.in)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestRecordFounderDistributionIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := DistributionInput{
		ProjectID:         "proj_towel",
		TokenID:           "tok_test",
		FounderWallets:    2,
		DistributedAmount: 100,
		LockedAmount:      900,
		AsOf:              time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Source:            "treasury",
	}
	first, err := env.recorder.RecordFounderDistribution(ctx, in)
	require.NoError(t, err)

	second, err := env.recorder.RecordFounderDistribution(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.SummaryID, second.SummaryID)

	dists, err := env.recorder.ListDistributions(ctx, "proj_towel")
	require.NoError(t, err)
	assert.Len(t, dists, 1)
}

func TestSnapshotCredibilityFreezesScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No verdicts yet: nothing to freeze.
	_, err := env.recorder.SnapshotCredibility(ctx, "proj_towel", "s1", "ops")
	assert.ErrorIs(t, err, model.ErrValidation)

	kept, err := env.registry.Register(ctx, registry.RegisterInput{
		ProjectID:   "proj_towel",
		TokenSymbol: "$TOWEL",
		Statement:   "Reach 10k holders",
		DueAt:       "2026-12-31T00:00:00Z",
	})
	require.NoError(t, err)
	broken, err := env.registry.Register(ctx, registry.RegisterInput{
		ProjectID:   "proj_towel",
		TokenSymbol: "$TOWEL",
		Statement:   "Ship the staking program",
		DueAt:       "2027-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	_, err = env.registry.Evaluate(ctx, kept.PromiseID, true, registry.EvaluateOptions{})
	require.NoError(t, err)
	_, err = env.registry.Evaluate(ctx, broken.PromiseID, false, registry.EvaluateOptions{})
	require.NoError(t, err)

	snap, err := env.recorder.SnapshotCredibility(ctx, "proj_towel", "s1", "ops")
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.Season)
	assert.Equal(t, 2, snap.TotalPromises)
	assert.Equal(t, 2, snap.EvaluatedCount)
	assert.Equal(t, 1, snap.KeptCount)
	assert.InDelta(t, 0.5, snap.CredibilityScore, 1e-9)

	latest, err := env.recorder.LatestSnapshot(ctx, "proj_towel", "s1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, snap.SnapshotID, latest.SnapshotID)

	// Season unscoped lookup sees it too.
	unscoped, err := env.recorder.LatestSnapshot(ctx, "proj_towel", "")
	require.NoError(t, err)
	require.NotNil(t, unscoped)
	assert.Equal(t, snap.SnapshotID, unscoped.SnapshotID)
}

func TestSnapshotCredibilityRequiresSeason(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.recorder.SnapshotCredibility(context.Background(), "proj_towel", "", "ops")
	assert.ErrorIs(t, err, model.ErrValidation)
}
