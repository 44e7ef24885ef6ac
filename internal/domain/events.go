package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferCompletedEvent is published after a transfer commits. Consumed by
// the notification fan-out.
type TransferCompletedEvent struct {
	ReceiptID      uuid.UUID   `json:"receipt_id"`
	Token          string      `json:"token"`
	PayerAccountID uuid.UUID   `json:"payer_account_id"`
	PayeeAccountID *uuid.UUID  `json:"payee_account_id,omitempty"`
	Amount         int64       `json:"amount"`
	PlatformFee    int64       `json:"platform_fee"`
	Kind           ReceiptKind `json:"kind"`
	CreatedAt      time.Time   `json:"created_at"`
}

// SubscriptionActivatedEvent is published when a verification window opens.
type SubscriptionActivatedEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	WindowID  uuid.UUID `json:"window_id"`
	PeriodEnd time.Time `json:"period_end"`
}

// SubscriptionExpiredEvent is published by the sweeper for each account whose
// verified status lapsed.
type SubscriptionExpiredEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// UserRegisteredEvent is consumed from the identity service to provision the
// user's account with the starting balance.
type UserRegisteredEvent struct {
	UserID string `json:"user_id"`
}

// UserDeletedEvent is consumed from the identity service to soft-disable the
// user's account.
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
}
