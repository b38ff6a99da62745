package scoring

import (
	"context"
	"log/slog"

	"github.com/MetaSPN/metaspn-tokens/internal/adapter"
	"github.com/MetaSPN/metaspn-tokens/internal/identity"
	"github.com/MetaSPN/metaspn-tokens/internal/store"
)

// Scorecard assembles the flat token health feature map consumed by
// downstream monitoring. Features come from three sources: the credibility
// summary, adapter-supplied token facts, and the season lifecycle tables.
// A source that has nothing to say contributes nothing; missing data is
// omitted, never an error.
type Scorecard struct {
	scorer    *Scorer
	adapters  []adapter.TokenAdapter
	lifecycle store.LifecycleRepository
	logger    *slog.Logger
}

func NewScorecard(scorer *Scorer, adapters []adapter.TokenAdapter, lifecycle store.LifecycleRepository, logger *slog.Logger) *Scorecard {
	return &Scorecard{
		scorer:    scorer,
		adapters:  adapters,
		lifecycle: lifecycle,
		logger:    logger.With("component", "scorecard"),
	}
}

func (c *Scorecard) Build(ctx context.Context, projectID, tokenSymbol string) (map[string]any, error) {
	project, err := identity.CanonicalProjectID(projectID)
	if err != nil {
		return nil, err
	}
	symbol, err := identity.CanonicalSymbol(tokenSymbol)
	if err != nil {
		return nil, err
	}

	summary, err := c.scorer.Summary(ctx, Scope{TokenSymbol: symbol})
	if err != nil {
		return nil, err
	}

	features := map[string]any{
		"project_id":      project,
		"token_symbol":    symbol,
		"total_promises":  summary.TotalPromises,
		"evaluated_count": summary.EvaluatedCount,
		"kept_count":      summary.KeptCount,
	}
	if summary.CredibilityScore != nil {
		features["credibility_score"] = *summary.CredibilityScore
	}

	facts := c.tokenFacts(ctx, symbol)
	if facts != nil {
		features["token_name"] = facts.Name
		features["token_chain"] = facts.Chain.String()
		features["token_address"] = facts.Address
	}

	c.addLifecycleFeatures(ctx, project, features)

	features["monitoring_ready"] = summary.TotalPromises > 0 && facts != nil
	return features, nil
}

func (c *Scorecard) tokenFacts(ctx context.Context, symbol string) *adapter.TokenFacts {
	for _, a := range c.adapters {
		facts, err := a.FetchTokenBySymbol(ctx, symbol)
		if err != nil {
			c.logger.Warn("scorecard adapter lookup failed", "adapter", a.Name(), "symbol", symbol, "error", err)
			continue
		}
		if facts != nil {
			return facts
		}
	}
	return nil
}

func (c *Scorecard) addLifecycleFeatures(ctx context.Context, projectID string, features map[string]any) {
	if c.lifecycle == nil {
		return
	}

	if fundings, err := c.lifecycle.ListRewardPoolFundings(ctx, projectID); err != nil {
		c.logger.Warn("scorecard funding read failed", "project_id", projectID, "error", err)
	} else if len(fundings) > 0 {
		total := 0.0
		for _, f := range fundings {
			total += f.Amount
		}
		features["reward_pool_funding_count"] = len(fundings)
		features["reward_pool_funding_total"] = total
	}

	if dists, err := c.lifecycle.ListFounderDistributions(ctx, projectID); err != nil {
		c.logger.Warn("scorecard founder distribution read failed", "project_id", projectID, "error", err)
	} else if len(dists) > 0 {
		distributed, locked := 0.0, 0.0
		wallets := 0
		for _, d := range dists {
			distributed += d.DistributedAmount
			locked += d.LockedAmount
			wallets += d.FounderWallets
		}
		features["founder_distributed_total"] = distributed
		features["founder_locked_total"] = locked
		features["founder_wallets"] = wallets
	}

	if snap, err := c.lifecycle.LatestSeasonSnapshot(ctx, projectID, ""); err != nil {
		c.logger.Warn("scorecard season snapshot read failed", "project_id", projectID, "error", err)
	} else if snap != nil {
		features["latest_season"] = snap.Season
		features["latest_season_score"] = snap.CredibilityScore
	}
}
