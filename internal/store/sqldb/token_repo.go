package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

const tokenColumns = "token_id, symbol, name, chain, address, project_id, metadata, created_at"

// Upsert inserts a token or refreshes the record behind an existing symbol,
// returning the stored row. The token_id and created_at of an existing row
// are preserved.
func (r *TokenRepo) Upsert(ctx context.Context, t *model.Token) (*model.Token, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	metadata := t.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO tokens (token_id, symbol, name, chain, address, project_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			chain = EXCLUDED.chain,
			address = EXCLUDED.address,
			project_id = EXCLUDED.project_id,
			metadata = EXCLUDED.metadata
	`), t.TokenID, t.Symbol, t.Name, t.Chain.String(), t.Address, t.ProjectID, string(metadata), timeText(now))
	if err != nil {
		return nil, fmt.Errorf("upsert token: %w", err)
	}

	stored, err := r.FindBySymbol(ctx, t.Symbol)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("upsert token: row missing after upsert for symbol %s", t.Symbol)
	}
	return stored, nil
}

func (r *TokenRepo) FindBySymbol(ctx context.Context, symbol string) (*model.Token, error) {
	return r.findOne(ctx, "symbol = ?", symbol)
}

func (r *TokenRepo) FindByChainAddress(ctx context.Context, chain model.Chain, address string) (*model.Token, error) {
	return r.findOne(ctx, "chain = ? AND address = ?", chain.String(), address)
}

func (r *TokenRepo) FindByID(ctx context.Context, tokenID string) (*model.Token, error) {
	return r.findOne(ctx, "token_id = ?", tokenID)
}

func (r *TokenRepo) findOne(ctx context.Context, where string, args ...any) (*model.Token, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, r.db.Rebind(
		"SELECT "+tokenColumns+" FROM tokens WHERE "+where,
	), args...)

	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return t, nil
}

func (r *TokenRepo) LinkProject(ctx context.Context, tokenID, projectID string, relation model.LinkRelation) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO token_project_links (token_id, project_id, relation, linked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token_id, project_id, relation) DO NOTHING
	`), tokenID, projectID, string(relation), timeText(now))
	if err != nil {
		return fmt.Errorf("link token project: %w", err)
	}
	return nil
}

func (r *TokenRepo) ListByProject(ctx context.Context, projectID string) ([]model.Token, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT t.token_id, t.symbol, t.name, t.chain, t.address, t.project_id, t.metadata, t.created_at
		FROM tokens t
		JOIN token_project_links l ON l.token_id = t.token_id
		WHERE l.project_id = ?
		ORDER BY t.symbol
	`), projectID)
	if err != nil {
		return nil, fmt.Errorf("list tokens by project: %w", err)
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("list tokens by project scan: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tokens by project rows: %w", err)
	}
	return tokens, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*model.Token, error) {
	var (
		t         model.Token
		chain     string
		metadata  string
		createdAt string
	)
	if err := row.Scan(&t.TokenID, &t.Symbol, &t.Name, &chain, &t.Address, &t.ProjectID, &metadata, &createdAt); err != nil {
		return nil, err
	}
	t.Chain = model.Chain(chain)
	t.Metadata = []byte(metadata)

	parsed, err := parseTimeText(createdAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parsed
	return &t, nil
}
