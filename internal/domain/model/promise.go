package model

import (
	"encoding/json"
	"time"
)

// Promise is a recorded claim made by a project about a token, awaiting a
// verdict. Immutable once created except for State, which flips exactly once
// from pending to evaluated.
//
// PromiseID is a pure function of (ProjectID, TokenSymbol, Statement, DueAt);
// see the identity package for the canonical derivation. Source and CreatedBy
// are provenance metadata and do not participate in the identity.
type Promise struct {
	PromiseID   string       `db:"promise_id"`
	ProjectID   string       `db:"project_id"`
	TokenSymbol string       `db:"token_symbol"`
	Statement   string       `db:"statement"`
	DueAt       time.Time    `db:"due_at"`
	Source      string       `db:"source"`
	CreatedBy   string       `db:"created_by"`
	CreatedAt   time.Time    `db:"created_at"`
	State       PromiseState `db:"state"`
}

// PromiseEvaluation is the one-time recorded verdict for a promise.
// Append-only: never updated or deleted, at most one row per promise.
type PromiseEvaluation struct {
	PromiseID   string          `db:"promise_id"`
	Observed    bool            `db:"observed"`
	Evidence    json.RawMessage `db:"evidence"`
	EvaluatedBy string          `db:"evaluated_by"`
	Note        *string         `db:"note"`
	EvaluatedAt time.Time       `db:"evaluated_at"`
}
