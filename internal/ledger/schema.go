package ledger

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_active TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    from_agent TEXT REFERENCES agents (id),
    to_agent TEXT NOT NULL REFERENCES agents (id),
    amount BIGINT NOT NULL CHECK (amount > 0),
    kind TEXT NOT NULL,
    content_hash TEXT,
    memo TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS submissions (
    id UUID PRIMARY KEY,
    agent_id TEXT NOT NULL REFERENCES agents (id),
    task TEXT NOT NULL,
    output TEXT NOT NULL,
    content_hash TEXT UNIQUE NOT NULL,
    tokens_earned BIGINT NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'validated',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    validated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS bounties (
    id UUID PRIMARY KEY,
    creator_id TEXT NOT NULL REFERENCES agents (id),
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    reward BIGINT NOT NULL CHECK (reward > 0),
    status TEXT NOT NULL DEFAULT 'open',
    claimed_by TEXT REFERENCES agents (id),
    claimed_at TIMESTAMPTZ,
    submission TEXT,
    submitted_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions (from_agent);
CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions (to_agent);
CREATE INDEX IF NOT EXISTS idx_bounties_status ON bounties (status);
`

// Migrate creates the ledger tables if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
