package model

import "time"

// CredibilitySnapshot is a point-in-time view derived from the evaluation log.
// It is computed on demand and not persisted by the scorer.
//
// CredibilityScore is nil when EvaluatedCount is zero: a scope with no verdicts
// has insufficient data and must not be reported as perfectly or zero credible.
type CredibilitySnapshot struct {
	ProjectID        string
	TokenSymbol      string
	TotalPromises    int
	EvaluatedCount   int
	KeptCount        int
	CredibilityScore *float64
	AsOf             time.Time
}
