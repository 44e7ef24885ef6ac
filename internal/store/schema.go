package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL mirrors the files under migrations/. Every statement is
// idempotent so running it against an already-migrated database is a no-op.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS accounts (
    id                UUID PRIMARY KEY,
    balance           BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    unlimited_funds   BOOLEAN NOT NULL DEFAULT FALSE,
    lifetime_earnings BIGINT NOT NULL DEFAULT 0 CHECK (lifetime_earnings >= 0),
    verified          BOOLEAN NOT NULL DEFAULT FALSE,
    verified_until    TIMESTAMPTZ,
    status            TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'disabled')),
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_accounts_verified_until
    ON accounts (verified_until)
    WHERE verified = TRUE AND verified_until IS NOT NULL;

CREATE TABLE IF NOT EXISTS transaction_receipts (
    id               UUID PRIMARY KEY,
    payer_account_id UUID NOT NULL REFERENCES accounts (id),
    payee_account_id UUID REFERENCES accounts (id),
    amount           BIGINT NOT NULL CHECK (amount >= 0),
    platform_fee     BIGINT NOT NULL DEFAULT 0 CHECK (platform_fee >= 0 AND platform_fee <= amount),
    token            TEXT NOT NULL,
    kind             TEXT NOT NULL CHECK (kind IN ('purchase', 'gift', 'subscription')),
    description      TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (payer_account_id <> payee_account_id),
    CHECK (amount > 0 OR kind = 'subscription')
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_token ON transaction_receipts (token);
CREATE INDEX IF NOT EXISTS idx_receipts_payer_created ON transaction_receipts (payer_account_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_receipts_payee_created ON transaction_receipts (payee_account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS subscription_windows (
    id           UUID PRIMARY KEY,
    account_id   UUID NOT NULL REFERENCES accounts (id),
    fee          BIGINT NOT NULL CHECK (fee >= 0),
    period_start TIMESTAMPTZ NOT NULL,
    period_end   TIMESTAMPTZ NOT NULL,
    status       TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'expired', 'cancelled')),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (period_end > period_start)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_windows_one_active_per_account
    ON subscription_windows (account_id)
    WHERE status = 'active';

CREATE INDEX IF NOT EXISTS idx_windows_active_period_end
    ON subscription_windows (period_end)
    WHERE status = 'active';
`

// EnsureSchema creates the service's tables if they do not exist. Deployed
// environments apply the migrations directory instead; this keeps a fresh
// local database usable without tooling.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schemaDDL)
	return err
}
