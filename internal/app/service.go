/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct orchestrates every value transfer on the platform,
 * coordinating between the database repository and the message broker.
 *
 * Key features:
 * - Implements the main use cases: marketplace purchases and operator gifts.
 * - Delegates balance mutation and receipt insertion to a single atomic
 *   repository operation so a half-applied transfer is never observable.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/domain"
	"github.com/vendora/ledger-service/internal/store"
	"github.com/vendora/ledger-service/pkg/rabbitmq"
)

const (
	defaultReceiptListLimit = 50
	maxReceiptListLimit     = 100
)

var (
	ErrInvalidAmount = errors.New("transfer amount must be positive")
	ErrInvalidFee    = errors.New("platform fee must be non-negative and less than the amount")
	ErrInvalidKind   = errors.New("unknown transfer kind")
	ErrSelfTransfer  = errors.New("payer and payee must be different accounts")
)

// Service provides the core business logic for the ledger.
type Service struct {
	repo            store.Repository
	eventProducer   rabbitmq.Publisher
	eventsExchange  string
	subscriptionFee int64
	startingBalance int64
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, eventsExchange string, subscriptionFee, startingBalance int64) *Service {
	return &Service{
		repo:            repo,
		eventProducer:   producer,
		eventsExchange:  eventsExchange,
		subscriptionFee: subscriptionFee,
		startingBalance: startingBalance,
	}
}

// ProcessTransfer moves value from the payer to the payee and returns the
// receipt. The payer is the authenticated caller for purchases; gifts arrive
// through ProcessGift with an explicit payer.
func (s *Service) ProcessTransfer(ctx context.Context, payerID uuid.UUID, req domain.TransferRequest) (*domain.TransactionReceipt, error) {
	// 1. Validate the request before touching storage.
	kind := domain.ReceiptKind(req.Kind)
	if kind != domain.ReceiptKindPurchase && kind != domain.ReceiptKindGift {
		return nil, ErrInvalidKind
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.PlatformFee < 0 || req.PlatformFee >= req.Amount {
		return nil, ErrInvalidFee
	}
	if payerID == req.PayeeAccountID {
		return nil, ErrSelfTransfer
	}

	log.Printf("ProcessTransfer: Starting %s from %s to %s for amount %d", kind, payerID, req.PayeeAccountID, req.Amount)

	// 2. Execute the debit, credit and receipt insert as one atomic unit.
	params := store.TransferParams{
		ReceiptID:   uuid.New(),
		PayerID:     payerID,
		PayeeID:     req.PayeeAccountID,
		Amount:      req.Amount,
		PlatformFee: req.PlatformFee,
		Token:       newReceiptToken(),
		Kind:        kind,
		Description: req.Description,
	}
	receipt, err := s.repo.TransferFundsAtomic(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to execute transfer: %w", err)
	}

	// 3. Publish the completion event. Delivery is best-effort and never fails
	// a committed transfer.
	if s.eventProducer != nil {
		event := domain.TransferCompletedEvent{
			ReceiptID:      receipt.ID,
			Token:          receipt.Token,
			PayerAccountID: receipt.PayerAccountID,
			PayeeAccountID: receipt.PayeeAccountID,
			Amount:         receipt.Amount,
			PlatformFee:    receipt.PlatformFee,
			Kind:           receipt.Kind,
			CreatedAt:      receipt.CreatedAt,
		}
		if err := s.eventProducer.Publish(ctx, s.eventsExchange, "transfer.completed", event); err != nil {
			log.Printf("WARN: Failed to publish transfer.completed for receipt %s: %v", receipt.ID, err)
		}
	}

	return receipt, nil
}

// ProcessGift handles the operator "gift money" action. It is a plain transfer
// with the gift kind; the payer is usually an unlimited-funds operator account.
func (s *Service) ProcessGift(ctx context.Context, req domain.GiftRequest) (*domain.TransactionReceipt, error) {
	return s.ProcessTransfer(ctx, req.PayerAccountID, domain.TransferRequest{
		PayeeAccountID: req.PayeeAccountID,
		Amount:         req.Amount,
		Kind:           string(domain.ReceiptKindGift),
		Description:    req.Note,
	})
}

// GetAccount returns the account identified by id.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, accountID)
}

// ListReceipts returns the account's receipt history, newest first. Limits
// are normalized here so handlers can pass query values straight through.
func (s *Service) ListReceipts(ctx context.Context, accountID uuid.UUID, opts domain.ReceiptListOptions) ([]domain.TransactionReceipt, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultReceiptListLimit
	}
	if opts.Limit > maxReceiptListLimit {
		opts.Limit = maxReceiptListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.repo.FindReceiptsByAccountID(ctx, accountID, opts)
}

// ProvisionAccount creates the balance record for a newly registered user with
// the configured starting balance. Replays are no-ops.
func (s *Service) ProvisionAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	acct, err := s.repo.CreateAccount(ctx, accountID, s.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}
	return acct, nil
}

// DisableAccount soft-disables an account so the ledger rejects it from then on.
func (s *Service) DisableAccount(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.DisableAccount(ctx, accountID)
}
