/**
 * @description
 * This file defines the TransactionReceipt domain model and the transfer DTOs.
 * A receipt is the immutable record of a single value transfer; the receipts
 * table is append-only and no code path updates or deletes a row.
 *
 * @notes
 * - PayeeAccountID is nil when the counterparty is the implicit platform sink
 *   (subscription fee debits have no receiving account).
 * - PlatformFee is the marketplace cut withheld from the payee's credit. The
 *   payer is always debited exactly Amount.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReceiptKind categorizes why value moved.
type ReceiptKind string

const (
	ReceiptKindPurchase     ReceiptKind = "purchase"
	ReceiptKindGift         ReceiptKind = "gift"
	ReceiptKindSubscription ReceiptKind = "subscription"
)

// TransactionReceipt represents one completed transfer in the ledger.
type TransactionReceipt struct {
	ID             uuid.UUID   `json:"id"`
	PayerAccountID uuid.UUID   `json:"payer_account_id"`
	PayeeAccountID *uuid.UUID  `json:"payee_account_id,omitempty"`
	Amount         int64       `json:"amount"`       // in minor units
	PlatformFee    int64       `json:"platform_fee"` // in minor units
	Token          string      `json:"token"`
	Kind           ReceiptKind `json:"kind"`
	Description    string      `json:"description,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TransferRequest is the DTO for incoming transfer API requests. The payer is
// always the authenticated caller.
type TransferRequest struct {
	PayeeAccountID uuid.UUID `json:"payee_account_id"`
	Amount         int64     `json:"amount"` // in minor units
	PlatformFee    int64     `json:"platform_fee"`
	Kind           string    `json:"kind"` // 'purchase' or 'gift'
	Description    string    `json:"description"`
}

// GiftRequest is the DTO for the operator gift endpoint. Unlike the public
// transfer endpoint the payer is named explicitly, since internal callers do
// not carry a user identity.
type GiftRequest struct {
	PayerAccountID uuid.UUID `json:"payer_account_id"`
	PayeeAccountID uuid.UUID `json:"payee_account_id"`
	Amount         int64     `json:"amount"` // in minor units
	Note           string    `json:"note"`
}

// ReceiptListOptions controls pagination for an account's receipt history.
type ReceiptListOptions struct {
	Limit  int
	Offset int
}
