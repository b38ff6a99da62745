package sqldb

import "strings"

// Timestamps persist as RFC 3339 UTC text at second precision; lexicographic
// order equals chronological order, which the ordered list queries rely on.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS tokens (
  token_id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  chain TEXT NOT NULL,
  address TEXT NOT NULL,
  project_id TEXT NOT NULL DEFAULT '',
  metadata TEXT NOT NULL,
  created_at TEXT NOT NULL,
  UNIQUE (chain, address)
);

CREATE TABLE IF NOT EXISTS token_project_links (
  token_id TEXT NOT NULL,
  project_id TEXT NOT NULL,
  relation TEXT NOT NULL,
  linked_at TEXT NOT NULL,
  UNIQUE (token_id, project_id, relation)
);

CREATE TABLE IF NOT EXISTS promises (
  promise_id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  token_symbol TEXT NOT NULL,
  statement TEXT NOT NULL,
  due_at TEXT NOT NULL,
  source TEXT NOT NULL,
  created_by TEXT NOT NULL,
  created_at TEXT NOT NULL,
  state TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS promise_evaluations (
  promise_id TEXT PRIMARY KEY,
  observed BOOLEAN NOT NULL,
  evidence TEXT NOT NULL,
  evaluated_by TEXT NOT NULL,
  note TEXT,
  evaluated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reward_pool_funding (
  funding_id {{AUTOID}},
  project_id TEXT NOT NULL,
  token_id TEXT NOT NULL,
  amount DOUBLE PRECISION NOT NULL,
  tx_hash TEXT NOT NULL,
  funded_at TEXT NOT NULL,
  source TEXT NOT NULL,
  recorded_by TEXT NOT NULL,
  recorded_at TEXT NOT NULL,
  UNIQUE (project_id, token_id, tx_hash)
);

CREATE TABLE IF NOT EXISTS season_credibility_snapshots (
  snapshot_id {{AUTOID}},
  project_id TEXT NOT NULL,
  season TEXT NOT NULL,
  credibility_score DOUBLE PRECISION NOT NULL,
  total_promises INTEGER NOT NULL,
  evaluated_count INTEGER NOT NULL,
  kept_count INTEGER NOT NULL,
  snapshot_at TEXT NOT NULL,
  recorded_by TEXT NOT NULL,
  created_at TEXT NOT NULL,
  UNIQUE (project_id, season, snapshot_at)
);

CREATE TABLE IF NOT EXISTS founder_distribution_summaries (
  summary_id {{AUTOID}},
  project_id TEXT NOT NULL,
  token_id TEXT NOT NULL,
  founder_wallets INTEGER NOT NULL,
  distributed_amount DOUBLE PRECISION NOT NULL,
  locked_amount DOUBLE PRECISION NOT NULL,
  as_of TEXT NOT NULL,
  source TEXT NOT NULL,
  recorded_by TEXT NOT NULL,
  recorded_at TEXT NOT NULL,
  UNIQUE (project_id, token_id, as_of, source)
);
`

// schemaStatements renders the schema for a driver and splits it into
// individually executable statements.
func schemaStatements(driver string) []string {
	autoID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		autoID = "BIGSERIAL PRIMARY KEY"
	}
	rendered := strings.ReplaceAll(schemaTemplate, "{{AUTOID}}", autoID)

	parts := strings.Split(rendered, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
