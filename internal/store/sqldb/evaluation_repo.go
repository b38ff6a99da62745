package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

type EvaluationRepo struct {
	db *DB
}

func NewEvaluationRepo(db *DB) *EvaluationRepo {
	return &EvaluationRepo{db: db}
}

// InsertTx appends the one verdict row for a promise. The promise_id primary
// key makes the log append-only at the storage layer: a second insert maps to
// model.ErrAlreadyEvaluated and the existing verdict stands.
func (r *EvaluationRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.PromiseEvaluation) error {
	evidence := e.Evidence
	if len(evidence) == 0 {
		evidence = []byte("{}")
	}

	_, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO promise_evaluations (promise_id, observed, evidence, evaluated_by, note, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), e.PromiseID, e.Observed, string(evidence), e.EvaluatedBy, e.Note, timeText(e.EvaluatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("promise %s: %w", e.PromiseID, model.ErrAlreadyEvaluated)
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepo) Get(ctx context.Context, promiseID string) (*model.PromiseEvaluation, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		e           model.PromiseEvaluation
		evidence    string
		evaluatedAt string
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT promise_id, observed, evidence, evaluated_by, note, evaluated_at
		FROM promise_evaluations
		WHERE promise_id = ?
	`), promiseID).Scan(&e.PromiseID, &e.Observed, &evidence, &e.EvaluatedBy, &e.Note, &evaluatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}

	e.Evidence = []byte(evidence)
	if e.EvaluatedAt, err = parseTimeText(evaluatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// CountByPromiseIDs returns the evaluated and kept counts over a promise set
// in a single aggregate query.
func (r *EvaluationRepo) CountByPromiseIDs(ctx context.Context, promiseIDs []string) (int, int, error) {
	if len(promiseIDs) == 0 {
		return 0, 0, nil
	}

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(promiseIDs)), ", ")
	args := make([]any, len(promiseIDs))
	for i, id := range promiseIDs {
		args[i] = id
	}

	var evaluated, kept int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN observed THEN 1 ELSE 0 END), 0)
		FROM promise_evaluations
		WHERE promise_id IN (%s)
	`, placeholders)), args...).Scan(&evaluated, &kept)
	if err != nil {
		return 0, 0, fmt.Errorf("count evaluations: %w", err)
	}
	return evaluated, kept, nil
}
