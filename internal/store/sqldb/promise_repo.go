package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

type PromiseRepo struct {
	db *DB
}

func NewPromiseRepo(db *DB) *PromiseRepo {
	return &PromiseRepo{db: db}
}

const promiseColumns = "promise_id, project_id, token_symbol, statement, due_at, source, created_by, created_at, state"

// CreateTx inserts a promise. The promise_id primary key carries the
// duplicate guarantee: a conflict maps to model.ErrDuplicatePromise, so
// exactly one of any set of concurrent identical registrations succeeds even
// across processes sharing the store.
func (r *PromiseRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Promise) error {
	_, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO promises (promise_id, project_id, token_symbol, statement, due_at, source, created_by, created_at, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), p.PromiseID, p.ProjectID, p.TokenSymbol, p.Statement, timeText(p.DueAt),
		p.Source, p.CreatedBy, timeText(p.CreatedAt), p.State.String())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("promise %s: %w", p.PromiseID, model.ErrDuplicatePromise)
		}
		return fmt.Errorf("insert promise: %w", err)
	}
	return nil
}

func (r *PromiseRepo) Get(ctx context.Context, promiseID string) (*model.Promise, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, r.db.Rebind(
		"SELECT "+promiseColumns+" FROM promises WHERE promise_id = ?",
	), promiseID)

	p, err := scanPromise(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get promise: %w", err)
	}
	return p, nil
}

func (r *PromiseRepo) ListByProject(ctx context.Context, projectID string) ([]model.Promise, error) {
	return r.list(ctx,
		"SELECT "+promiseColumns+" FROM promises WHERE project_id = ? ORDER BY created_at, promise_id",
		projectID)
}

func (r *PromiseRepo) ListPending(ctx context.Context, projectID string) ([]model.Promise, error) {
	if projectID == "" {
		return r.list(ctx,
			"SELECT "+promiseColumns+" FROM promises WHERE state = ? ORDER BY created_at, promise_id",
			model.PromiseStatePending.String())
	}
	return r.list(ctx,
		"SELECT "+promiseColumns+" FROM promises WHERE state = ? AND project_id = ? ORDER BY created_at, promise_id",
		model.PromiseStatePending.String(), projectID)
}

// ListVerifiable returns pending promises due at or before asOf, most overdue
// first. due_at text ordering is chronological because the stored form is
// RFC 3339 UTC.
func (r *PromiseRepo) ListVerifiable(ctx context.Context, asOf time.Time) ([]model.Promise, error) {
	return r.list(ctx,
		"SELECT "+promiseColumns+" FROM promises WHERE state = ? AND due_at <= ? ORDER BY due_at, promise_id",
		model.PromiseStatePending.String(), timeText(asOf))
}

func (r *PromiseRepo) ListBySymbol(ctx context.Context, tokenSymbol string) ([]model.Promise, error) {
	return r.list(ctx,
		"SELECT "+promiseColumns+" FROM promises WHERE token_symbol = ? ORDER BY created_at, promise_id",
		tokenSymbol)
}

// MarkEvaluatedTx flips state pending -> evaluated. The state guard in the
// WHERE clause makes the flip observable exactly once.
func (r *PromiseRepo) MarkEvaluatedTx(ctx context.Context, tx *sql.Tx, promiseID string) (bool, error) {
	res, err := tx.ExecContext(ctx, r.db.Rebind(
		"UPDATE promises SET state = ? WHERE promise_id = ? AND state = ?",
	), model.PromiseStateEvaluated.String(), promiseID, model.PromiseStatePending.String())
	if err != nil {
		return false, fmt.Errorf("mark promise evaluated: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark promise evaluated rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *PromiseRepo) list(ctx context.Context, query string, args ...any) ([]model.Promise, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list promises: %w", err)
	}
	defer rows.Close()

	var promises []model.Promise
	for rows.Next() {
		p, err := scanPromise(rows)
		if err != nil {
			return nil, fmt.Errorf("list promises scan: %w", err)
		}
		promises = append(promises, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list promises rows: %w", err)
	}
	return promises, nil
}

func scanPromise(row rowScanner) (*model.Promise, error) {
	var (
		p         model.Promise
		dueAt     string
		createdAt string
		state     string
	)
	if err := row.Scan(&p.PromiseID, &p.ProjectID, &p.TokenSymbol, &p.Statement,
		&dueAt, &p.Source, &p.CreatedBy, &createdAt, &state); err != nil {
		return nil, err
	}
	p.State = model.PromiseState(state)

	var err error
	if p.DueAt, err = parseTimeText(dueAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTimeText(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}
