/**
 * @description
 * This file contains the subscription half of the ledger-service: purchasing a
 * verification window, reading the current window, and the operator grant and
 * revoke actions. The expiry sweep lives in jobs.go and runs in the sweeper
 * process.
 *
 * @notes
 * - A window always covers exactly one calendar month (AddDate(0, 1, 0)), so
 *   a purchase on Jan 31 ends on the civil date one month later, not after a
 *   fixed number of days.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/domain"
	"github.com/vendora/ledger-service/internal/store"
)

// PurchaseSubscription debits the fixed verification fee and opens a one-month
// window for the account. The fee is waived (but still receipted at zero) for
// unlimited-funds accounts.
func (s *Service) PurchaseSubscription(ctx context.Context, accountID uuid.UUID) (*domain.SubscriptionWindow, error) {
	// 1. Open the window with fresh identity; the period is one calendar month.
	now := time.Now()
	params := store.SubscriptionPurchaseParams{
		AccountID:   accountID,
		WindowID:    uuid.New(),
		ReceiptID:   uuid.New(),
		Token:       newReceiptToken(),
		Fee:         s.subscriptionFee,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
	}
	window, err := s.repo.PurchaseSubscriptionAtomic(ctx, params)
	if err != nil {
		// A concurrent purchase that won the race surfaces as a unique
		// violation on the active-window index; report it the same way as
		// the verified-flag check.
		if errors.Is(err, store.ErrActiveWindowExists) {
			return nil, store.ErrAlreadyVerified
		}
		return nil, fmt.Errorf("failed to purchase subscription: %w", err)
	}

	// 2. Publish the activation event for the notification fan-out.
	if s.eventProducer != nil {
		event := domain.SubscriptionActivatedEvent{
			AccountID: window.AccountID,
			WindowID:  window.ID,
			PeriodEnd: window.PeriodEnd,
		}
		if err := s.eventProducer.Publish(ctx, s.eventsExchange, "subscription.activated", event); err != nil {
			log.Printf("WARN: Failed to publish subscription.activated for account %s: %v", window.AccountID, err)
		}
	}

	return window, nil
}

// CurrentWindow returns the account's active verification window, if any.
func (s *Service) CurrentWindow(ctx context.Context, accountID uuid.UUID) (*domain.SubscriptionWindow, error) {
	return s.repo.FindActiveWindowByAccountID(ctx, accountID)
}

// GrantVerification marks an account verified permanently (no fee, no window,
// no expiry). Only reachable through the internal operator surface.
func (s *Service) GrantVerification(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.GrantVerification(ctx, accountID)
}

// RevokeVerification clears an account's verified status and cancels any
// active window. Only reachable through the internal operator surface.
func (s *Service) RevokeVerification(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.RevokeVerification(ctx, accountID)
}
