package model

import "time"

// Season lifecycle records. These tables are owned by the lifecycle recorder,
// never by the promise registry; the registry and scorecard only read them to
// annotate evidence payloads and feature sets.

type RewardPoolFunding struct {
	FundingID  int64     `db:"funding_id"`
	ProjectID  string    `db:"project_id"`
	TokenID    string    `db:"token_id"`
	Amount     float64   `db:"amount"`
	TxHash     string    `db:"tx_hash"`
	FundedAt   time.Time `db:"funded_at"`
	Source     string    `db:"source"`
	RecordedBy string    `db:"recorded_by"`
	RecordedAt time.Time `db:"recorded_at"`
}

type SeasonCredibilitySnapshot struct {
	SnapshotID       int64     `db:"snapshot_id"`
	ProjectID        string    `db:"project_id"`
	Season           string    `db:"season"`
	CredibilityScore float64   `db:"credibility_score"`
	TotalPromises    int       `db:"total_promises"`
	EvaluatedCount   int       `db:"evaluated_count"`
	KeptCount        int       `db:"kept_count"`
	SnapshotAt       time.Time `db:"snapshot_at"`
	RecordedBy       string    `db:"recorded_by"`
	CreatedAt        time.Time `db:"created_at"`
}

type FounderDistributionSummary struct {
	SummaryID         int64     `db:"summary_id"`
	ProjectID         string    `db:"project_id"`
	TokenID           string    `db:"token_id"`
	FounderWallets    int       `db:"founder_wallets"`
	DistributedAmount float64   `db:"distributed_amount"`
	LockedAmount      float64   `db:"locked_amount"`
	AsOf              time.Time `db:"as_of"`
	Source            string    `db:"source"`
	RecordedBy        string    `db:"recorded_by"`
	RecordedAt        time.Time `db:"recorded_at"`
}
