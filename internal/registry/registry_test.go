package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MetaSPN/metaspn-tokens/internal/directory"
	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/feed"
	"github.com/MetaSPN/metaspn-tokens/internal/store/sqldb"
)

type testEnv struct {
	registry *Registry
	feed     *feed.MemoryFeed
	db       *sqldb.DB
	tokens   *sqldb.TokenRepo
	life     *sqldb.LifecycleRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqldb.New(sqldb.Config{Driver: sqldb.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens := sqldb.NewTokenRepo(db)
	life := sqldb.NewLifecycleRepo(db)
	dir := directory.New(tokens, nil, directory.DefaultSeeds(), slog.Default())
	memFeed := feed.NewMemoryFeed()

	reg := New(db, sqldb.NewPromiseRepo(db), sqldb.NewEvaluationRepo(db), life, dir, memFeed, slog.Default())
	return &testEnv{registry: reg, feed: memFeed, db: db, tokens: tokens, life: life}
}

func towelInput(statement, dueAt string) RegisterInput {
	return RegisterInput{
		ProjectID:   "proj_towel",
		TokenSymbol: "$TOWEL",
		Statement:   statement,
		DueAt:       dueAt,
		Source:      "test",
		CreatedBy:   "tester",
	}
}

func TestRegisterDerivesDeterministicID(t *testing.T) {
	env := newTestEnv(t)

	promise, err := env.registry.Register(context.Background(), towelInput("Reach 10k holders", "2026-12-31T00:00:00Z"))
	require.NoError(t, err)

	assert.Equal(t, "prm_f9e3ab751b5c48114e88711d", promise.PromiseID)
	assert.Equal(t, "proj_towel", promise.ProjectID)
	assert.Equal(t, "$TOWEL", promise.TokenSymbol)
	assert.Equal(t, model.PromiseStatePending, promise.State)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), promise.DueAt)
}

func TestRegisterRejectsLogicalDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.registry.Register(ctx, towelInput("Reach 10k holders", "2026-12-31T00:00:00Z"))
	require.NoError(t, err)

	// Same instant written in a different zone, different whitespace and
	// casing: still the same promise.
	dup := RegisterInput{
		ProjectID:   "  PROJ_TOWEL ",
		TokenSymbol: "towel",
		Statement:   "  Reach   10K HOLDERS ",
		DueAt:       "2026-12-31T09:00:00+09:00",
		Source:      "retry",
	}
	_, err = env.registry.Register(ctx, dup)
	assert.ErrorIs(t, err, model.ErrDuplicatePromise)

	promises, err := env.registry.GetByProject(ctx, "proj_towel")
	require.NoError(t, err)
	assert.Len(t, promises, 1)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"empty project", towelInputWith(func(in *RegisterInput) { in.ProjectID = " " })},
		{"empty symbol", towelInputWith(func(in *RegisterInput) { in.TokenSymbol = "" })},
		{"empty statement", towelInputWith(func(in *RegisterInput) { in.Statement = "   " })},
		{"empty due_at", towelInputWith(func(in *RegisterInput) { in.DueAt = "" })},
		{"naive due_at", towelInputWith(func(in *RegisterInput) { in.DueAt = "2026-12-31 00:00:00" })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.registry.Register(ctx, tc.in)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func towelInputWith(mutate func(*RegisterInput)) RegisterInput {
	in := towelInput("Reach 10k holders", "2026-12-31T00:00:00Z")
	mutate(&in)
	return in
}

func TestEvaluateIsOneWayAndAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	promise, err := env.registry.Register(ctx, towelInput("Ship the staking program", "2026-06-01T00:00:00Z"))
	require.NoError(t, err)

	eval, err := env.registry.Evaluate(ctx, promise.PromiseID, true, EvaluateOptions{
		Evidence:    map[string]any{"tx": "abc123"},
		EvaluatedBy: "oracle",
		Note:        "shipped on mainnet",
	})
	require.NoError(t, err)
	assert.True(t, eval.Observed)
	require.NotNil(t, eval.Note)
	assert.Equal(t, "shipped on mainnet", *eval.Note)

	// State flipped together with the verdict insert.
	stored, err := env.registry.Get(ctx, promise.PromiseID)
	require.NoError(t, err)
	assert.Equal(t, model.PromiseStateEvaluated, stored.State)

	// The verdict is final; a contradicting one is rejected and the original
	// stands.
	_, err = env.registry.Evaluate(ctx, promise.PromiseID, false, EvaluateOptions{})
	assert.ErrorIs(t, err, model.ErrAlreadyEvaluated)

	kept, err := sqldb.NewEvaluationRepo(env.db).Get(ctx, promise.PromiseID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.True(t, kept.Observed)
}

func TestEvaluateUnknownPromise(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.Evaluate(context.Background(), "prm_000000000000000000000000", true, EvaluateOptions{})
	assert.ErrorIs(t, err, model.ErrPromiseNotFound)
}

func TestEvaluatePublishesVerdict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	promise, err := env.registry.Register(ctx, towelInput("List on a second venue", "2026-09-01T00:00:00Z"))
	require.NoError(t, err)

	_, err = env.registry.Evaluate(ctx, promise.PromiseID, false, EvaluateOptions{EvaluatedBy: "oracle"})
	require.NoError(t, err)

	verdicts := env.feed.Verdicts()
	require.Len(t, verdicts, 1)
	assert.Equal(t, promise.PromiseID, verdicts[0].PromiseID)
	assert.Equal(t, "proj_towel", verdicts[0].ProjectID)
	assert.Equal(t, "$TOWEL", verdicts[0].TokenSymbol)
	assert.False(t, verdicts[0].Observed)
	assert.NotEmpty(t, verdicts[0].MessageID)
}

func TestEvaluateAnnotatesLifecycleContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.life.InsertRewardPoolFunding(ctx, &model.RewardPoolFunding{
		ProjectID: "proj_towel",
		TokenID:   "tok_test",
		Amount:    1500,
		TxHash:    "sig1",
		FundedAt:  time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Source:    "treasury",
	})
	require.NoError(t, err)
	_, err = env.life.InsertRewardPoolFunding(ctx, &model.RewardPoolFunding{
		ProjectID: "proj_towel",
		TokenID:   "tok_test",
		Amount:    500,
		TxHash:    "sig2",
		FundedAt:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Source:    "treasury",
	})
	require.NoError(t, err)

	promise, err := env.registry.Register(ctx, towelInput("Fund the season reward pool", "2026-03-01T00:00:00Z"))
	require.NoError(t, err)

	eval, err := env.registry.Evaluate(ctx, promise.PromiseID, true, EvaluateOptions{
		Evidence: map[string]any{"reviewer": "manual"},
	})
	require.NoError(t, err)

	var evidence map[string]any
	require.NoError(t, json.Unmarshal(eval.Evidence, &evidence))
	assert.Equal(t, "manual", evidence["reviewer"])
	assert.EqualValues(t, 2, evidence["reward_pool_funding_count"])
	assert.EqualValues(t, 2000, evidence["reward_pool_funding_total"])
}

func TestGetVerifiableFiltersAndOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	early, err := env.registry.Register(ctx, towelInput("Early milestone", "2026-01-01T00:00:00Z"))
	require.NoError(t, err)
	mid, err := env.registry.Register(ctx, towelInput("Mid milestone", "2026-06-01T00:00:00Z"))
	require.NoError(t, err)
	_, err = env.registry.Register(ctx, towelInput("Far future milestone", "2030-01-01T00:00:00Z"))
	require.NoError(t, err)

	// An already-evaluated overdue promise must not resurface.
	evaluated, err := env.registry.Register(ctx, towelInput("Done milestone", "2025-06-01T00:00:00Z"))
	require.NoError(t, err)
	_, err = env.registry.Evaluate(ctx, evaluated.PromiseID, true, EvaluateOptions{})
	require.NoError(t, err)

	verifiable, err := env.registry.GetVerifiable(ctx, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, verifiable, 2)
	assert.Equal(t, early.PromiseID, verifiable[0].PromiseID)
	assert.Equal(t, mid.PromiseID, verifiable[1].PromiseID)
}

func TestSelfRegisterDefaultsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.registry.SelfRegisterDefaults(ctx, "proj_towel")
	require.NoError(t, err)
	require.Len(t, first, 4) // two seed tokens, two reference promises each

	ids := make(map[string]bool, len(first))
	for _, p := range first {
		ids[p.PromiseID] = true
	}
	assert.True(t, ids["prm_289675531ff4a09a9e745395"], "$TOWEL metadata promise ID drifted")
	assert.True(t, ids["prm_45d5fc06eb90ac1ba4aafb10"], "$METATOWEL metadata promise ID drifted")

	second, err := env.registry.SelfRegisterDefaults(ctx, "proj_towel")
	require.NoError(t, err)
	assert.Empty(t, second)

	all, err := env.registry.GetByProject(ctx, "proj_towel")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPendingShrinksAsPromisesAreEvaluated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.registry.Register(ctx, towelInput("Milestone A", "2026-04-01T00:00:00Z"))
	require.NoError(t, err)
	_, err = env.registry.Register(ctx, towelInput("Milestone B", "2026-05-01T00:00:00Z"))
	require.NoError(t, err)

	pending, err := env.registry.GetPending(ctx, "proj_towel")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = env.registry.Evaluate(ctx, a.PromiseID, true, EvaluateOptions{})
	require.NoError(t, err)

	pending, err = env.registry.GetPending(ctx, "proj_towel")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Milestone B", pending[0].Statement)

	// Unscoped pending view covers all projects.
	all, err := env.registry.GetPending(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
