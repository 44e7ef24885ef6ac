/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL the ledger-service runs against the
 * accounts, transaction_receipts and subscription_windows tables.
 *
 * Balance mutations are serialized per account with SELECT ... FOR UPDATE row
 * locks, and every multi-row money movement happens inside a single database
 * transaction so a half-applied transfer is never observable.
 *
 * @dependencies
 * - context, errors, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendora/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrWindowNotFound     = errors.New("subscription window not found")
	ErrActiveWindowExists = errors.New("active subscription window already exists")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// storageErr tags a driver-level failure so callers can map it to a
// service-unavailable response without inspecting driver internals.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w (%v)", op, ErrStorageUnavailable, err)
}

// orderForLock returns the two account ids in ascending byte order. Locking
// rows in a fixed order keeps two opposing transfers from deadlocking.
func orderForLock(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(b[:], a[:]) < 0 {
		return b, a
	}
	return a, b
}

const accountColumns = `id, balance, unlimited_funds, lifetime_earnings, verified, verified_until, status, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acct domain.Account
	err := row.Scan(
		&acct.ID,
		&acct.Balance,
		&acct.UnlimitedFunds,
		&acct.LifetimeEarnings,
		&acct.Verified,
		&acct.VerifiedUntil,
		&acct.Status,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// CreateAccount provisions the balance record for a newly registered user.
// Provisioning is idempotent: replaying the registration event for an id that
// already has a row leaves the existing row untouched and returns it.
func (r *PostgresRepository) CreateAccount(ctx context.Context, accountID uuid.UUID, startingBalance int64) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (id, balance)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + accountColumns
	acct, err := scanAccount(r.db.QueryRow(ctx, query, accountID, startingBalance))
	if err != nil {
		if err == pgx.ErrNoRows {
			// Already provisioned; return the existing row.
			return r.FindAccountByID(ctx, accountID)
		}
		return nil, storageErr("failed to create account", err)
	}
	return acct, nil
}

// FindAccountByID retrieves an account by its id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	acct, err := scanAccount(r.db.QueryRow(ctx, query, accountID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, storageErr("failed to find account", err)
	}
	return acct, nil
}

// DisableAccount soft-disables an account. The row is kept so historical
// receipts keep resolving; disabled accounts are rejected by the ledger.
func (r *PostgresRepository) DisableAccount(ctx context.Context, accountID uuid.UUID) error {
	query := `UPDATE accounts SET status = 'disabled', updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, accountID)
	if err != nil {
		return storageErr("failed to disable account", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TransferFundsAtomic moves value between two accounts and appends the receipt
// as one all-or-nothing unit of work.
func (r *PostgresRepository) TransferFundsAtomic(ctx context.Context, params TransferParams) (*domain.TransactionReceipt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock both account rows with FOR UPDATE, in ascending id order so two
	// opposing transfers cannot deadlock each other.
	firstID, secondID := orderForLock(params.PayerID, params.PayeeID)

	type lockedAccount struct {
		balance   int64
		unlimited bool
		status    domain.AccountStatus
	}
	var payer, payee lockedAccount

	lockQuery := `SELECT balance, unlimited_funds, status FROM accounts WHERE id = $1 FOR UPDATE`
	for _, id := range []uuid.UUID{firstID, secondID} {
		var acct lockedAccount
		err = tx.QueryRow(ctx, lockQuery, id).Scan(&acct.balance, &acct.unlimited, &acct.status)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrAccountNotFound
			}
			return nil, storageErr("failed to lock account", err)
		}
		if id == params.PayerID {
			payer = acct
		} else {
			payee = acct
		}
	}

	// 2. Validate both parties under the locks.
	if payer.status != domain.AccountStatusActive || payee.status != domain.AccountStatusActive {
		return nil, ErrAccountDisabled
	}
	if !payer.unlimited && payer.balance < params.Amount {
		return nil, ErrInsufficientFunds
	}

	// 3. Debit the payer unless it has unlimited funds.
	if !payer.unlimited {
		_, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2", params.Amount, params.PayerID)
		if err != nil {
			return nil, storageErr("failed to debit payer", err)
		}
	}

	// 4. Credit the payee unless it has unlimited funds. The platform fee is
	// withheld from the credit, and lifetime earnings grow by the same net.
	credit := params.Amount - params.PlatformFee
	if !payee.unlimited {
		_, err = tx.Exec(ctx,
			"UPDATE accounts SET balance = balance + $1, lifetime_earnings = lifetime_earnings + $1, updated_at = NOW() WHERE id = $2",
			credit, params.PayeeID)
		if err != nil {
			return nil, storageErr("failed to credit payee", err)
		}
	}

	// 5. Append the receipt within the same transaction.
	receipt := domain.TransactionReceipt{
		ID:             params.ReceiptID,
		PayerAccountID: params.PayerID,
		PayeeAccountID: &params.PayeeID,
		Amount:         params.Amount,
		PlatformFee:    params.PlatformFee,
		Token:          params.Token,
		Kind:           params.Kind,
		Description:    params.Description,
	}
	insertQuery := `
		INSERT INTO transaction_receipts (id, payer_account_id, payee_account_id, amount, platform_fee, token, kind, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		receipt.ID,
		receipt.PayerAccountID,
		receipt.PayeeAccountID,
		receipt.Amount,
		receipt.PlatformFee,
		receipt.Token,
		receipt.Kind,
		receipt.Description,
	).Scan(&receipt.CreatedAt)
	if err != nil {
		return nil, storageErr("failed to insert receipt", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("failed to commit transfer", err)
	}
	return &receipt, nil
}

// FindReceiptsByAccountID lists receipts where the account is payer or payee,
// newest first.
func (r *PostgresRepository) FindReceiptsByAccountID(ctx context.Context, accountID uuid.UUID, opts domain.ReceiptListOptions) ([]domain.TransactionReceipt, error) {
	query := `
		SELECT id, payer_account_id, payee_account_id, amount, platform_fee, token, kind, description, created_at
		FROM transaction_receipts
		WHERE payer_account_id = $1 OR payee_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, storageErr("failed to list receipts", err)
	}
	defer rows.Close()

	var receipts []domain.TransactionReceipt
	for rows.Next() {
		var rec domain.TransactionReceipt
		err := rows.Scan(
			&rec.ID,
			&rec.PayerAccountID,
			&rec.PayeeAccountID,
			&rec.Amount,
			&rec.PlatformFee,
			&rec.Token,
			&rec.Kind,
			&rec.Description,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, storageErr("failed to scan receipt", err)
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to read receipts", err)
	}
	return receipts, nil
}

// PurchaseSubscriptionAtomic debits the verification fee, appends the receipt,
// opens the window and flips the account's verified flag as one all-or-nothing
// unit of work. For unlimited-funds accounts no balance moves but a zero-amount
// receipt is still recorded for audit.
func (r *PostgresRepository) PurchaseSubscriptionAtomic(ctx context.Context, params SubscriptionPurchaseParams) (*domain.SubscriptionWindow, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the account row and validate under the lock.
	var balance int64
	var unlimited, verified bool
	var status domain.AccountStatus
	lockQuery := `SELECT balance, unlimited_funds, verified, status FROM accounts WHERE id = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, lockQuery, params.AccountID).Scan(&balance, &unlimited, &verified, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, storageErr("failed to lock account", err)
	}
	if status != domain.AccountStatusActive {
		return nil, ErrAccountDisabled
	}
	if verified {
		return nil, ErrAlreadyVerified
	}

	// 2. Debit the fee. Unlimited-funds accounts pay nothing; the fee recorded
	// on the window and receipt drops to zero for them.
	fee := params.Fee
	if unlimited {
		fee = 0
	}
	if !unlimited && balance < fee {
		return nil, ErrInsufficientFunds
	}
	if fee > 0 {
		_, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2", fee, params.AccountID)
		if err != nil {
			return nil, storageErr("failed to debit fee", err)
		}
	}

	// 3. Append the receipt. The payee is NULL: the fee goes to the implicit
	// platform sink, not to another account.
	receiptQuery := `
		INSERT INTO transaction_receipts (id, payer_account_id, payee_account_id, amount, platform_fee, token, kind, description)
		VALUES ($1, $2, NULL, $3, 0, $4, $5, 'verification subscription')
	`
	_, err = tx.Exec(ctx, receiptQuery, params.ReceiptID, params.AccountID, fee, params.Token, domain.ReceiptKindSubscription)
	if err != nil {
		return nil, storageErr("failed to insert receipt", err)
	}

	// 4. Open the window. The partial unique index on (account_id) WHERE
	// status = 'active' turns a lost purchase race into a unique violation.
	window := domain.SubscriptionWindow{
		ID:          params.WindowID,
		AccountID:   params.AccountID,
		Fee:         fee,
		PeriodStart: params.PeriodStart,
		PeriodEnd:   params.PeriodEnd,
		Status:      domain.WindowStatusActive,
	}
	windowQuery := `
		INSERT INTO subscription_windows (id, account_id, fee, period_start, period_end, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, windowQuery,
		window.ID,
		window.AccountID,
		window.Fee,
		window.PeriodStart,
		window.PeriodEnd,
		window.Status,
	).Scan(&window.CreatedAt, &window.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" { // unique_violation
			return nil, ErrActiveWindowExists
		}
		return nil, storageErr("failed to insert window", err)
	}

	// 5. Flip the verified flag; the expiry mirrors the window's period end.
	_, err = tx.Exec(ctx, "UPDATE accounts SET verified = TRUE, verified_until = $1, updated_at = NOW() WHERE id = $2", params.PeriodEnd, params.AccountID)
	if err != nil {
		return nil, storageErr("failed to set verified flag", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("failed to commit purchase", err)
	}
	return &window, nil
}

// FindActiveWindowByAccountID returns the account's active window, if any.
func (r *PostgresRepository) FindActiveWindowByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.SubscriptionWindow, error) {
	var window domain.SubscriptionWindow
	query := `
		SELECT id, account_id, fee, period_start, period_end, status, created_at, updated_at
		FROM subscription_windows
		WHERE account_id = $1 AND status = 'active'
	`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&window.ID,
		&window.AccountID,
		&window.Fee,
		&window.PeriodStart,
		&window.PeriodEnd,
		&window.Status,
		&window.CreatedAt,
		&window.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWindowNotFound
		}
		return nil, storageErr("failed to find active window", err)
	}
	return &window, nil
}

// GrantVerification marks an account verified permanently. A NULL
// verified_until is what distinguishes an operator grant from a paid window,
// so the sweep never demotes these accounts.
func (r *PostgresRepository) GrantVerification(ctx context.Context, accountID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var verified bool
	var status domain.AccountStatus
	err = tx.QueryRow(ctx, "SELECT verified, status FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&verified, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return storageErr("failed to lock account", err)
	}
	if status != domain.AccountStatusActive {
		return ErrAccountDisabled
	}
	if verified {
		return ErrAlreadyVerified
	}

	_, err = tx.Exec(ctx, "UPDATE accounts SET verified = TRUE, verified_until = NULL, updated_at = NOW() WHERE id = $1", accountID)
	if err != nil {
		return storageErr("failed to grant verification", err)
	}

	return tx.Commit(ctx)
}

// RevokeVerification clears the verified flag and cancels any active window.
// Revoking an unverified account is a no-op, not an error.
func (r *PostgresRepository) RevokeVerification(ctx context.Context, accountID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var verified bool
	err = tx.QueryRow(ctx, "SELECT verified FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&verified)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return storageErr("failed to lock account", err)
	}

	_, err = tx.Exec(ctx, "UPDATE accounts SET verified = FALSE, verified_until = NULL, updated_at = NOW() WHERE id = $1", accountID)
	if err != nil {
		return storageErr("failed to clear verified flag", err)
	}

	_, err = tx.Exec(ctx, "UPDATE subscription_windows SET status = 'cancelled', updated_at = NOW() WHERE account_id = $1 AND status = 'active'", accountID)
	if err != nil {
		return storageErr("failed to cancel window", err)
	}

	return tx.Commit(ctx)
}

// ExpireStaleWindows flips every active window whose period has lapsed to
// expired. Running it again immediately affects zero rows.
func (r *PostgresRepository) ExpireStaleWindows(ctx context.Context) (int64, error) {
	query := `
		UPDATE subscription_windows
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND period_end <= NOW()
	`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, storageErr("failed to expire windows", err)
	}
	return tag.RowsAffected(), nil
}

// DemoteLapsedAccounts clears the verified flag for accounts whose paid
// verification has lapsed. Operator-granted verification (NULL verified_until)
// is never touched.
func (r *PostgresRepository) DemoteLapsedAccounts(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		UPDATE accounts
		SET verified = FALSE, verified_until = NULL, updated_at = NOW()
		WHERE verified = TRUE AND verified_until IS NOT NULL AND verified_until <= NOW()
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, storageErr("failed to demote accounts", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("failed to scan account id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to read demoted accounts", err)
	}
	return ids, nil
}
