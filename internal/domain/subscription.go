/**
 * @description
 * This file defines the SubscriptionWindow domain model. A window is one paid
 * interval of "verified" status: it opens when the fee is debited and closes
 * when the sweep observes the period end in the past, or when an operator
 * cancels it.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// WindowStatus represents the lifecycle state of a subscription window.
// Transitions are one-way: active -> expired (sweep) or active -> cancelled
// (operator action). Nothing leaves expired or cancelled.
type WindowStatus string

const (
	WindowStatusActive    WindowStatus = "active"
	WindowStatusExpired   WindowStatus = "expired"
	WindowStatusCancelled WindowStatus = "cancelled"
)

// SubscriptionWindow represents one paid interval of verified status.
type SubscriptionWindow struct {
	ID          uuid.UUID    `json:"id"`
	AccountID   uuid.UUID    `json:"account_id"`
	Fee         int64        `json:"fee"` // amount actually debited, in minor units; 0 when waived
	PeriodStart time.Time    `json:"period_start"`
	PeriodEnd   time.Time    `json:"period_end"` // period_start + 1 calendar month
	Status      WindowStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SweepResult summarizes one run of the subscription expiry sweep.
type SweepResult struct {
	WindowsExpired  int64       `json:"windows_expired"`
	AccountsDemoted int64       `json:"accounts_demoted"`
	DemotedAccounts []uuid.UUID `json:"demoted_accounts,omitempty"`
}
