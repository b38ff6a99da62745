package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TokenRepository provides access to token directory data.
type TokenRepository interface {
	Upsert(ctx context.Context, t *model.Token) (*model.Token, error)
	FindBySymbol(ctx context.Context, symbol string) (*model.Token, error)
	FindByChainAddress(ctx context.Context, chain model.Chain, address string) (*model.Token, error)
	FindByID(ctx context.Context, tokenID string) (*model.Token, error)
	LinkProject(ctx context.Context, tokenID, projectID string, relation model.LinkRelation) error
	ListByProject(ctx context.Context, projectID string) ([]model.Token, error)
}

// PromiseRepository provides access to promise data. CreateTx and
// MarkEvaluatedTx are the only writes; promises are otherwise immutable.
type PromiseRepository interface {
	// CreateTx inserts a promise in state pending. A primary-key conflict is
	// reported as model.ErrDuplicatePromise.
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Promise) error
	Get(ctx context.Context, promiseID string) (*model.Promise, error)
	// ListByProject returns a project's promises ordered by created_at ascending.
	ListByProject(ctx context.Context, projectID string) ([]model.Promise, error)
	// ListPending returns pending promises, scoped to projectID when non-empty.
	ListPending(ctx context.Context, projectID string) ([]model.Promise, error)
	// ListVerifiable returns pending promises with due_at <= asOf, ordered by
	// due_at ascending so the most overdue surface first.
	ListVerifiable(ctx context.Context, asOf time.Time) ([]model.Promise, error)
	// ListBySymbol returns promises denormalized to a token symbol.
	ListBySymbol(ctx context.Context, tokenSymbol string) ([]model.Promise, error)
	// MarkEvaluatedTx flips state pending -> evaluated. Returns false when the
	// promise was not in state pending.
	MarkEvaluatedTx(ctx context.Context, tx *sql.Tx, promiseID string) (bool, error)
}

// EvaluationRepository provides access to the append-only evaluation log.
type EvaluationRepository interface {
	// InsertTx appends the verdict row. A unique violation on promise_id is
	// reported as model.ErrAlreadyEvaluated.
	InsertTx(ctx context.Context, tx *sql.Tx, e *model.PromiseEvaluation) error
	Get(ctx context.Context, promiseID string) (*model.PromiseEvaluation, error)
	// CountByPromiseIDs returns the evaluated and kept counts over a promise set.
	CountByPromiseIDs(ctx context.Context, promiseIDs []string) (evaluated int, kept int, err error)
}

// LifecycleRepository provides access to the separately-owned season lifecycle
// tables. The promise registry only reads them.
type LifecycleRepository interface {
	InsertRewardPoolFunding(ctx context.Context, f *model.RewardPoolFunding) (*model.RewardPoolFunding, error)
	ListRewardPoolFundings(ctx context.Context, projectID string) ([]model.RewardPoolFunding, error)
	InsertFounderDistribution(ctx context.Context, s *model.FounderDistributionSummary) (*model.FounderDistributionSummary, error)
	ListFounderDistributions(ctx context.Context, projectID string) ([]model.FounderDistributionSummary, error)
	InsertSeasonSnapshot(ctx context.Context, s *model.SeasonCredibilitySnapshot) (*model.SeasonCredibilitySnapshot, error)
	// LatestSeasonSnapshot scopes to one season, or all seasons when season
	// is empty.
	LatestSeasonSnapshot(ctx context.Context, projectID, season string) (*model.SeasonCredibilitySnapshot, error)
}
