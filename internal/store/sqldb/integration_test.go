//go:build integration

package sqldb_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/store/sqldb"
)

// testDB returns a store backed by a real PostgreSQL. It uses TEST_DB_URL
// when set, otherwise starts an ephemeral container via testcontainers.
// Schema bootstrap runs inside sqldb.New either way.
func testDB(t *testing.T) *sqldb.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("test_metaspn_tokens"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, container.Terminate(context.Background()))
		})

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := sqldb.New(sqldb.Config{
		Driver:          sqldb.DriverPostgres,
		DSN:             dsn,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresPromiseLifecycle(t *testing.T) {
	db := testDB(t)
	promises := sqldb.NewPromiseRepo(db)
	evals := sqldb.NewEvaluationRepo(db)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	p := &model.Promise{
		PromiseID:   "prm_f00000000000000000000001",
		ProjectID:   "proj_towel",
		TokenSymbol: "$TOWEL",
		Statement:   "Reach 10k holders",
		DueAt:       now.AddDate(0, 11, 30),
		CreatedAt:   now,
		State:       model.PromiseStatePending,
	}

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, promises.CreateTx(ctx, tx, p))
	require.NoError(t, tx.Commit())

	// Duplicate maps through the pq unique-violation code.
	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = promises.CreateTx(ctx, tx, p)
	assert.ErrorIs(t, err, model.ErrDuplicatePromise)
	_ = tx.Rollback()

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, evals.InsertTx(ctx, tx, &model.PromiseEvaluation{
		PromiseID:   p.PromiseID,
		Observed:    true,
		EvaluatedBy: "oracle",
		EvaluatedAt: now.AddDate(1, 0, 0),
	}))
	flipped, err := promises.MarkEvaluatedTx(ctx, tx, p.PromiseID)
	require.NoError(t, err)
	require.True(t, flipped)
	require.NoError(t, tx.Commit())

	stored, err := promises.Get(ctx, p.PromiseID)
	require.NoError(t, err)
	assert.Equal(t, model.PromiseStateEvaluated, stored.State)

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = evals.InsertTx(ctx, tx, &model.PromiseEvaluation{
		PromiseID:   p.PromiseID,
		Observed:    false,
		EvaluatedAt: now.AddDate(1, 1, 0),
	})
	assert.ErrorIs(t, err, model.ErrAlreadyEvaluated)
	_ = tx.Rollback()
}

func TestPostgresTokenUpsert(t *testing.T) {
	db := testDB(t)
	repo := sqldb.NewTokenRepo(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &model.Token{
		TokenID: model.NewTokenID(),
		Symbol:  "$TOWEL",
		Name:    "Towel Token",
		Chain:   model.ChainSolana,
		Address: "addr1",
	})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, &model.Token{
		TokenID: model.NewTokenID(),
		Symbol:  "$TOWEL",
		Name:    "Towel Token v2",
		Chain:   model.ChainSolana,
		Address: "addr2",
	})
	require.NoError(t, err)
	assert.Equal(t, first.TokenID, second.TokenID)
	assert.Equal(t, "addr2", second.Address)
}
