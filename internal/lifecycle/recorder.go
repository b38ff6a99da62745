// Package lifecycle records season lifecycle events: reward pool fundings,
// founder distribution summaries, and season credibility snapshots. It is the
// only writer of these tables; the registry and scorecard read them for
// evidence and feature annotation.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/identity"
	"github.com/MetaSPN/metaspn-tokens/internal/scoring"
	"github.com/MetaSPN/metaspn-tokens/internal/store"
)

type Recorder struct {
	life   store.LifecycleRepository
	scorer *scoring.Scorer
	logger *slog.Logger

	now func() time.Time
}

func NewRecorder(life store.LifecycleRepository, scorer *scoring.Scorer, logger *slog.Logger) *Recorder {
	return &Recorder{
		life:   life,
		scorer: scorer,
		logger: logger.With("component", "lifecycle"),
		now:    time.Now,
	}
}

type FundingInput struct {
	ProjectID  string
	TokenID    string
	Amount     float64
	TxHash     string
	FundedAt   time.Time
	Source     string
	RecordedBy string
}

// RecordRewardPoolFunding records one funding transaction. Idempotent on
// (project, token, tx hash): replaying a transaction returns the stored row.
func (r *Recorder) RecordRewardPoolFunding(ctx context.Context, in FundingInput) (*model.RewardPoolFunding, error) {
	projectID, err := identity.CanonicalProjectID(in.ProjectID)
	if err != nil {
		return nil, err
	}
	if in.TokenID == "" {
		return nil, fmt.Errorf("token_id must not be empty: %w", model.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("funding amount must be positive: %w", model.ErrValidation)
	}
	if in.TxHash == "" {
		return nil, fmt.Errorf("tx_hash must not be empty: %w", model.ErrValidation)
	}
	fundedAt := in.FundedAt
	if fundedAt.IsZero() {
		fundedAt = r.now()
	}

	stored, err := r.life.InsertRewardPoolFunding(ctx, &model.RewardPoolFunding{
		ProjectID:  projectID,
		TokenID:    in.TokenID,
		Amount:     in.Amount,
		TxHash:     in.TxHash,
		FundedAt:   fundedAt.UTC().Truncate(time.Second),
		Source:     in.Source,
		RecordedBy: in.RecordedBy,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("reward pool funding recorded",
		"project_id", projectID, "token_id", in.TokenID, "tx_hash", in.TxHash, "amount", in.Amount)
	return stored, nil
}

type DistributionInput struct {
	ProjectID         string
	TokenID           string
	FounderWallets    int
	DistributedAmount float64
	LockedAmount      float64
	AsOf              time.Time
	Source            string
	RecordedBy        string
}

// RecordFounderDistribution records a founder distribution summary, idempotent
// on (project, token, as_of, source).
func (r *Recorder) RecordFounderDistribution(ctx context.Context, in DistributionInput) (*model.FounderDistributionSummary, error) {
	projectID, err := identity.CanonicalProjectID(in.ProjectID)
	if err != nil {
		return nil, err
	}
	if in.TokenID == "" {
		return nil, fmt.Errorf("token_id must not be empty: %w", model.ErrValidation)
	}
	if in.DistributedAmount < 0 || in.LockedAmount < 0 {
		return nil, fmt.Errorf("distribution amounts must not be negative: %w", model.ErrValidation)
	}
	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = r.now()
	}

	stored, err := r.life.InsertFounderDistribution(ctx, &model.FounderDistributionSummary{
		ProjectID:         projectID,
		TokenID:           in.TokenID,
		FounderWallets:    in.FounderWallets,
		DistributedAmount: in.DistributedAmount,
		LockedAmount:      in.LockedAmount,
		AsOf:              asOf.UTC().Truncate(time.Second),
		Source:            in.Source,
		RecordedBy:        in.RecordedBy,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("founder distribution recorded",
		"project_id", projectID, "token_id", in.TokenID, "distributed", in.DistributedAmount, "locked", in.LockedAmount)
	return stored, nil
}

// SnapshotCredibility freezes the current credibility summary for a season.
// A project with no verdicts yet cannot be snapshotted: a frozen zero would
// later be indistinguishable from an earned zero.
func (r *Recorder) SnapshotCredibility(ctx context.Context, projectID, season, recordedBy string) (*model.SeasonCredibilitySnapshot, error) {
	if season == "" {
		return nil, fmt.Errorf("season must not be empty: %w", model.ErrValidation)
	}

	summary, err := r.scorer.Summary(ctx, scoring.Scope{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	if summary.CredibilityScore == nil {
		return nil, fmt.Errorf("project %s has no evaluated promises: %w", summary.ProjectID, model.ErrValidation)
	}

	stored, err := r.life.InsertSeasonSnapshot(ctx, &model.SeasonCredibilitySnapshot{
		ProjectID:        summary.ProjectID,
		Season:           season,
		CredibilityScore: *summary.CredibilityScore,
		TotalPromises:    summary.TotalPromises,
		EvaluatedCount:   summary.EvaluatedCount,
		KeptCount:        summary.KeptCount,
		SnapshotAt:       summary.AsOf,
		RecordedBy:       recordedBy,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("season credibility snapshot recorded",
		"project_id", summary.ProjectID, "season", season, "score", *summary.CredibilityScore)
	return stored, nil
}

func (r *Recorder) ListFundings(ctx context.Context, projectID string) ([]model.RewardPoolFunding, error) {
	canonical, err := identity.CanonicalProjectID(projectID)
	if err != nil {
		return nil, err
	}
	return r.life.ListRewardPoolFundings(ctx, canonical)
}

func (r *Recorder) ListDistributions(ctx context.Context, projectID string) ([]model.FounderDistributionSummary, error) {
	canonical, err := identity.CanonicalProjectID(projectID)
	if err != nil {
		return nil, err
	}
	return r.life.ListFounderDistributions(ctx, canonical)
}

func (r *Recorder) LatestSnapshot(ctx context.Context, projectID, season string) (*model.SeasonCredibilitySnapshot, error) {
	canonical, err := identity.CanonicalProjectID(projectID)
	if err != nil {
		return nil, err
	}
	return r.life.LatestSeasonSnapshot(ctx, canonical, season)
}
