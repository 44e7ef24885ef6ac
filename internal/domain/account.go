/**
 * @description
 * This file defines the core domain model for an Account within the Vendora
 * platform. An account is the balance-holding record for a single user and is
 * the only entity the ledger ever debits or credits.
 *
 * @notes
 * - Amounts are stored as `int64` in minor currency units (1/100 of a display
 *   unit), which avoids floating-point inaccuracies with monetary data.
 * - The account id is the platform user id; accounts are provisioned when a
 *   user registers and soft-disabled rather than deleted so that historical
 *   receipts always resolve.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus defines the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusDisabled AccountStatus = "disabled"
)

// Account represents a user's spendable balance in our system.
type Account struct {
	ID               uuid.UUID     `json:"id"`
	Balance          int64         `json:"balance"` // in minor units
	UnlimitedFunds   bool          `json:"unlimited_funds"`
	LifetimeEarnings int64         `json:"lifetime_earnings"` // in minor units
	Verified         bool          `json:"verified"`
	VerifiedUntil    *time.Time    `json:"verified_until,omitempty"` // nil while verified = admin-granted, permanent
	Status           AccountStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// AccountView is the DTO returned to the account owner. It hides the
// unlimited-funds flag, which is an operator-only attribute.
type AccountView struct {
	ID               uuid.UUID  `json:"id"`
	Balance          int64      `json:"balance"`
	LifetimeEarnings int64      `json:"lifetime_earnings"`
	Verified         bool       `json:"verified"`
	VerifiedUntil    *time.Time `json:"verified_until,omitempty"`
}

// View shapes the account for the public API response.
func (a *Account) View() AccountView {
	return AccountView{
		ID:               a.ID,
		Balance:          a.Balance,
		LifetimeEarnings: a.LifetimeEarnings,
		Verified:         a.Verified,
		VerifiedUntil:    a.VerifiedUntil,
	}
}
