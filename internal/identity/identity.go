// Package identity derives deterministic promise identifiers from promise
// content. The mapping is versioned and must stay byte-identical across
// processes and implementations: two logically identical submissions always
// yield the same identifier.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
)

// Version identifies the canonicalization scheme below. Any change to field
// order, normalization, or timestamp format requires a new version.
const Version = "v1"

const (
	idPrefix    = "prm_"
	idHexDigits = 24
)

// CanonicalProjectID trims and lowercases a project identifier.
func CanonicalProjectID(projectID string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(projectID))
	if cleaned == "" {
		return "", fmt.Errorf("project_id must not be empty: %w", model.ErrValidation)
	}
	return cleaned, nil
}

// CanonicalSymbol trims, uppercases, and "$"-prefixes a token symbol.
func CanonicalSymbol(symbol string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(symbol))
	if cleaned == "" {
		return "", fmt.Errorf("token_symbol must not be empty: %w", model.ErrValidation)
	}
	if !strings.HasPrefix(cleaned, "$") {
		cleaned = "$" + cleaned
	}
	return cleaned, nil
}

// CanonicalStatement lowercases a statement and collapses all interior
// whitespace runs to single spaces.
func CanonicalStatement(statement string) (string, error) {
	cleaned := strings.Join(strings.Fields(strings.ToLower(statement)), " ")
	if cleaned == "" {
		return "", fmt.Errorf("statement must not be empty: %w", model.ErrValidation)
	}
	return cleaned, nil
}

// CanonicalTime renders a timestamp in the canonical persisted form:
// RFC 3339, UTC, second precision. Lexicographic order of canonical strings
// equals chronological order.
func CanonicalTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseDueAt parses a due timestamp. The input must carry an explicit UTC
// offset; naive timestamps are rejected so the canonical instant is
// unambiguous regardless of the submitting host's zone.
func ParseDueAt(value string) (time.Time, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("due_at must not be empty: %w", model.ErrValidation)
	}
	t, err := time.Parse(time.RFC3339, cleaned)
	if err != nil {
		return time.Time{}, fmt.Errorf("due_at %q is not an RFC 3339 timestamp with offset: %w", value, model.ErrValidation)
	}
	return t.UTC().Truncate(time.Second), nil
}

// PromiseID derives the v1 promise identifier.
//
// Canonical payload (fields joined with "|", in this order):
//
//	canonical(project_id) | canonical(token_symbol) | canonical(statement) | canonical(due_at)
//
// The identifier is "prm_" followed by the first 24 hex digits of the
// SHA-256 digest of the payload.
func PromiseID(projectID, tokenSymbol, statement string, dueAt time.Time) (string, error) {
	project, err := CanonicalProjectID(projectID)
	if err != nil {
		return "", err
	}
	symbol, err := CanonicalSymbol(tokenSymbol)
	if err != nil {
		return "", err
	}
	stmt, err := CanonicalStatement(statement)
	if err != nil {
		return "", err
	}

	payload := strings.Join([]string{project, symbol, stmt, CanonicalTime(dueAt)}, "|")
	digest := sha256.Sum256([]byte(payload))
	return idPrefix + hex.EncodeToString(digest[:])[:idHexDigits], nil
}
