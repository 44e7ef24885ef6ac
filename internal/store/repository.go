/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the ledger-service performs. Keeping the business logic behind this
 * interface decouples it from PostgreSQL and lets tests substitute stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For account and receipt identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	CreateAccount(ctx context.Context, accountID uuid.UUID, startingBalance int64) (*domain.Account, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	DisableAccount(ctx context.Context, accountID uuid.UUID) error

	// Ledger methods
	TransferFundsAtomic(ctx context.Context, params TransferParams) (*domain.TransactionReceipt, error)
	FindReceiptsByAccountID(ctx context.Context, accountID uuid.UUID, opts domain.ReceiptListOptions) ([]domain.TransactionReceipt, error)

	// Subscription methods
	PurchaseSubscriptionAtomic(ctx context.Context, params SubscriptionPurchaseParams) (*domain.SubscriptionWindow, error)
	FindActiveWindowByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.SubscriptionWindow, error)
	GrantVerification(ctx context.Context, accountID uuid.UUID) error
	RevokeVerification(ctx context.Context, accountID uuid.UUID) error

	// Sweep methods
	ExpireStaleWindows(ctx context.Context) (int64, error)
	DemoteLapsedAccounts(ctx context.Context) ([]uuid.UUID, error)
}

// TransferParams carries everything the atomic transfer needs. The receipt id
// and token are generated by the caller so the store never invents identity.
type TransferParams struct {
	ReceiptID   uuid.UUID
	PayerID     uuid.UUID
	PayeeID     uuid.UUID
	Amount      int64
	PlatformFee int64
	Token       string
	Kind        domain.ReceiptKind
	Description string
}

// SubscriptionPurchaseParams carries the pre-generated identity for the window
// and its receipt. The fee actually debited is decided under the row lock: it
// drops to zero for unlimited-funds accounts.
type SubscriptionPurchaseParams struct {
	AccountID   uuid.UUID
	WindowID    uuid.UUID
	ReceiptID   uuid.UUID
	Token       string
	Fee         int64
	PeriodStart time.Time
	PeriodEnd   time.Time
}
