package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

// LifecycleRepo persists the season lifecycle tables. These are owned by the
// lifecycle recorder; the promise registry only reads them through this repo.
type LifecycleRepo struct {
	db *DB
}

func NewLifecycleRepo(db *DB) *LifecycleRepo {
	return &LifecycleRepo{db: db}
}

// InsertRewardPoolFunding records a funding event, idempotent on
// (project_id, token_id, tx_hash). Returns the stored row either way.
func (r *LifecycleRepo) InsertRewardPoolFunding(ctx context.Context, f *model.RewardPoolFunding) (*model.RewardPoolFunding, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO reward_pool_funding (project_id, token_id, amount, tx_hash, funded_at, source, recorded_by, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, token_id, tx_hash) DO NOTHING
	`), f.ProjectID, f.TokenID, f.Amount, f.TxHash, timeText(f.FundedAt), f.Source, f.RecordedBy, timeText(now))
	if err != nil {
		return nil, fmt.Errorf("insert reward pool funding: %w", err)
	}

	var (
		stored             model.RewardPoolFunding
		fundedAt, recorded string
	)
	err = r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT funding_id, project_id, token_id, amount, tx_hash, funded_at, source, recorded_by, recorded_at
		FROM reward_pool_funding
		WHERE project_id = ? AND token_id = ? AND tx_hash = ?
	`), f.ProjectID, f.TokenID, f.TxHash).Scan(
		&stored.FundingID, &stored.ProjectID, &stored.TokenID, &stored.Amount,
		&stored.TxHash, &fundedAt, &stored.Source, &stored.RecordedBy, &recorded,
	)
	if err != nil {
		return nil, fmt.Errorf("read reward pool funding: %w", err)
	}
	if stored.FundedAt, err = parseTimeText(fundedAt); err != nil {
		return nil, err
	}
	if stored.RecordedAt, err = parseTimeText(recorded); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *LifecycleRepo) ListRewardPoolFundings(ctx context.Context, projectID string) ([]model.RewardPoolFunding, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT funding_id, project_id, token_id, amount, tx_hash, funded_at, source, recorded_by, recorded_at
		FROM reward_pool_funding
		WHERE project_id = ?
		ORDER BY funded_at, funding_id
	`), projectID)
	if err != nil {
		return nil, fmt.Errorf("list reward pool fundings: %w", err)
	}
	defer rows.Close()

	var result []model.RewardPoolFunding
	for rows.Next() {
		var (
			f                  model.RewardPoolFunding
			fundedAt, recorded string
		)
		if err := rows.Scan(&f.FundingID, &f.ProjectID, &f.TokenID, &f.Amount,
			&f.TxHash, &fundedAt, &f.Source, &f.RecordedBy, &recorded); err != nil {
			return nil, fmt.Errorf("list reward pool fundings scan: %w", err)
		}
		if f.FundedAt, err = parseTimeText(fundedAt); err != nil {
			return nil, err
		}
		if f.RecordedAt, err = parseTimeText(recorded); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reward pool fundings rows: %w", err)
	}
	return result, nil
}

// InsertFounderDistribution records a founder distribution summary, idempotent
// on (project_id, token_id, as_of, source).
func (r *LifecycleRepo) InsertFounderDistribution(ctx context.Context, s *model.FounderDistributionSummary) (*model.FounderDistributionSummary, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO founder_distribution_summaries (project_id, token_id, founder_wallets, distributed_amount, locked_amount, as_of, source, recorded_by, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, token_id, as_of, source) DO NOTHING
	`), s.ProjectID, s.TokenID, s.FounderWallets, s.DistributedAmount, s.LockedAmount,
		timeText(s.AsOf), s.Source, s.RecordedBy, timeText(now))
	if err != nil {
		return nil, fmt.Errorf("insert founder distribution: %w", err)
	}

	var (
		stored         model.FounderDistributionSummary
		asOf, recorded string
	)
	err = r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT summary_id, project_id, token_id, founder_wallets, distributed_amount, locked_amount, as_of, source, recorded_by, recorded_at
		FROM founder_distribution_summaries
		WHERE project_id = ? AND token_id = ? AND as_of = ? AND source = ?
	`), s.ProjectID, s.TokenID, timeText(s.AsOf), s.Source).Scan(
		&stored.SummaryID, &stored.ProjectID, &stored.TokenID, &stored.FounderWallets,
		&stored.DistributedAmount, &stored.LockedAmount, &asOf, &stored.Source,
		&stored.RecordedBy, &recorded,
	)
	if err != nil {
		return nil, fmt.Errorf("read founder distribution: %w", err)
	}
	if stored.AsOf, err = parseTimeText(asOf); err != nil {
		return nil, err
	}
	if stored.RecordedAt, err = parseTimeText(recorded); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *LifecycleRepo) ListFounderDistributions(ctx context.Context, projectID string) ([]model.FounderDistributionSummary, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT summary_id, project_id, token_id, founder_wallets, distributed_amount, locked_amount, as_of, source, recorded_by, recorded_at
		FROM founder_distribution_summaries
		WHERE project_id = ?
		ORDER BY as_of, summary_id
	`), projectID)
	if err != nil {
		return nil, fmt.Errorf("list founder distributions: %w", err)
	}
	defer rows.Close()

	var result []model.FounderDistributionSummary
	for rows.Next() {
		var (
			s              model.FounderDistributionSummary
			asOf, recorded string
		)
		if err := rows.Scan(&s.SummaryID, &s.ProjectID, &s.TokenID, &s.FounderWallets,
			&s.DistributedAmount, &s.LockedAmount, &asOf, &s.Source, &s.RecordedBy, &recorded); err != nil {
			return nil, fmt.Errorf("list founder distributions scan: %w", err)
		}
		if s.AsOf, err = parseTimeText(asOf); err != nil {
			return nil, err
		}
		if s.RecordedAt, err = parseTimeText(recorded); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list founder distributions rows: %w", err)
	}
	return result, nil
}

// InsertSeasonSnapshot records a season credibility snapshot, idempotent on
// (project_id, season, snapshot_at).
func (r *LifecycleRepo) InsertSeasonSnapshot(ctx context.Context, s *model.SeasonCredibilitySnapshot) (*model.SeasonCredibilitySnapshot, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO season_credibility_snapshots (project_id, season, credibility_score, total_promises, evaluated_count, kept_count, snapshot_at, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, season, snapshot_at) DO NOTHING
	`), s.ProjectID, s.Season, s.CredibilityScore, s.TotalPromises, s.EvaluatedCount,
		s.KeptCount, timeText(s.SnapshotAt), s.RecordedBy, timeText(now))
	if err != nil {
		return nil, fmt.Errorf("insert season snapshot: %w", err)
	}

	stored, err := r.getSeasonSnapshot(ctx, "project_id = ? AND season = ? AND snapshot_at = ?",
		s.ProjectID, s.Season, timeText(s.SnapshotAt))
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("read season snapshot: row missing after insert")
	}
	return stored, nil
}

// LatestSeasonSnapshot returns the most recent snapshot for a season, or
// across all seasons when season is empty.
func (r *LifecycleRepo) LatestSeasonSnapshot(ctx context.Context, projectID, season string) (*model.SeasonCredibilitySnapshot, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if season == "" {
		return r.getSeasonSnapshot(ctx,
			"project_id = ? ORDER BY snapshot_at DESC, snapshot_id DESC LIMIT 1",
			projectID)
	}
	return r.getSeasonSnapshot(ctx,
		"project_id = ? AND season = ? ORDER BY snapshot_at DESC, snapshot_id DESC LIMIT 1",
		projectID, season)
}

func (r *LifecycleRepo) getSeasonSnapshot(ctx context.Context, where string, args ...any) (*model.SeasonCredibilitySnapshot, error) {
	var (
		s                   model.SeasonCredibilitySnapshot
		snapshotAt, created string
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT snapshot_id, project_id, season, credibility_score, total_promises, evaluated_count, kept_count, snapshot_at, recorded_by, created_at
		FROM season_credibility_snapshots
		WHERE `+where,
	), args...).Scan(
		&s.SnapshotID, &s.ProjectID, &s.Season, &s.CredibilityScore, &s.TotalPromises,
		&s.EvaluatedCount, &s.KeptCount, &snapshotAt, &s.RecordedBy, &created,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get season snapshot: %w", err)
	}
	if s.SnapshotAt, err = parseTimeText(snapshotAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTimeText(created); err != nil {
		return nil, err
	}
	return &s, nil
}
