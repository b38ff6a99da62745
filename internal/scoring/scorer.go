// Package scoring derives credibility summaries and token health scorecards
// from the evaluation log. Scores are recomputed from the log on every call,
// never cached, so a given log always reproduces the same numbers.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/identity"
	"github.com/MetaSPN/metaspn-tokens/internal/store"
)

// Scope selects the promise set to score: exactly one of ProjectID or
// TokenSymbol.
type Scope struct {
	ProjectID   string
	TokenSymbol string
}

type Scorer struct {
	promises store.PromiseRepository
	evals    store.EvaluationRepository

	now func() time.Time
}

func NewScorer(promises store.PromiseRepository, evals store.EvaluationRepository) *Scorer {
	return &Scorer{
		promises: promises,
		evals:    evals,
		now:      time.Now,
	}
}

// Summary computes the credibility snapshot for a scope.
//
// The score is kept/evaluated, unweighted. Pending promises sit in the
// denominator of nothing: they count toward total_promises only. A scope with
// no verdicts yet has a nil score; zero is an earned score, not a default.
func (s *Scorer) Summary(ctx context.Context, scope Scope) (*model.CredibilitySnapshot, error) {
	hasProject := scope.ProjectID != ""
	hasSymbol := scope.TokenSymbol != ""
	if hasProject == hasSymbol {
		return nil, fmt.Errorf("scope must name exactly one of project_id or token_symbol: %w", model.ErrInvalidQuery)
	}

	snapshot := &model.CredibilitySnapshot{AsOf: s.now().UTC().Truncate(time.Second)}

	var promises []model.Promise
	if hasProject {
		projectID, err := identity.CanonicalProjectID(scope.ProjectID)
		if err != nil {
			return nil, err
		}
		snapshot.ProjectID = projectID
		if promises, err = s.promises.ListByProject(ctx, projectID); err != nil {
			return nil, err
		}
	} else {
		symbol, err := identity.CanonicalSymbol(scope.TokenSymbol)
		if err != nil {
			return nil, err
		}
		snapshot.TokenSymbol = symbol
		if promises, err = s.promises.ListBySymbol(ctx, symbol); err != nil {
			return nil, err
		}
	}

	snapshot.TotalPromises = len(promises)
	if len(promises) == 0 {
		return snapshot, nil
	}

	ids := make([]string, len(promises))
	for i, p := range promises {
		ids[i] = p.PromiseID
	}
	evaluated, kept, err := s.evals.CountByPromiseIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	snapshot.EvaluatedCount = evaluated
	snapshot.KeptCount = kept
	if evaluated > 0 {
		score := float64(kept) / float64(evaluated)
		snapshot.CredibilityScore = &score
	}
	return snapshot, nil
}
