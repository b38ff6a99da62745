package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Token is a canonical token record. Identity is (chain, address); the symbol
// is a display key and unique only within this directory.
type Token struct {
	TokenID   string          `db:"token_id"`
	Symbol    string          `db:"symbol"`
	Name      string          `db:"name"`
	Chain     Chain           `db:"chain"`
	Address   string          `db:"address"`
	ProjectID string          `db:"project_id"`
	Metadata  json.RawMessage `db:"metadata"`
	CreatedAt time.Time       `db:"created_at"`
}

// NewTokenID mints a directory-scoped token identifier.
func NewTokenID() string {
	return "tok_" + uuid.New().String()
}

// TokenProjectLink associates a token with a project.
type TokenProjectLink struct {
	TokenID   string       `db:"token_id"`
	ProjectID string       `db:"project_id"`
	Relation  LinkRelation `db:"relation"`
	LinkedAt  time.Time    `db:"linked_at"`
}
