package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/domain"
	"github.com/vendora/ledger-service/internal/store"
)

const testEventsExchange = "vendora.events"

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

// capturingPublisher records every publish so tests can assert on the event
// stream. Setting publishErr makes every publish fail after recording.
type capturingPublisher struct {
	publishErr error
	published  []publishedEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.published = append(p.published, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return p.publishErr
}

func (p *capturingPublisher) Close() {}

type serviceRepoStub struct {
	store.Repository

	transferCalled bool
	transferParams store.TransferParams
	transferErr    error

	listCalled bool
	listOpts   domain.ReceiptListOptions

	createCalled          bool
	createStartingBalance int64
}

func (s *serviceRepoStub) TransferFundsAtomic(ctx context.Context, params store.TransferParams) (*domain.TransactionReceipt, error) {
	s.transferCalled = true
	s.transferParams = params
	if s.transferErr != nil {
		return nil, s.transferErr
	}
	payee := params.PayeeID
	return &domain.TransactionReceipt{
		ID:             params.ReceiptID,
		PayerAccountID: params.PayerID,
		PayeeAccountID: &payee,
		Amount:         params.Amount,
		PlatformFee:    params.PlatformFee,
		Token:          params.Token,
		Kind:           params.Kind,
		Description:    params.Description,
		CreatedAt:      time.Now(),
	}, nil
}

func (s *serviceRepoStub) FindReceiptsByAccountID(ctx context.Context, accountID uuid.UUID, opts domain.ReceiptListOptions) ([]domain.TransactionReceipt, error) {
	s.listCalled = true
	s.listOpts = opts
	return []domain.TransactionReceipt{}, nil
}

func (s *serviceRepoStub) CreateAccount(ctx context.Context, accountID uuid.UUID, startingBalance int64) (*domain.Account, error) {
	s.createCalled = true
	s.createStartingBalance = startingBalance
	return &domain.Account{ID: accountID, Balance: startingBalance, Status: domain.AccountStatusActive}, nil
}

func newTestService(repo store.Repository, producer *capturingPublisher) *Service {
	return NewService(repo, producer, testEventsExchange, 500000, 250000)
}

func TestProcessTransfer_RejectsInvalidInput(t *testing.T) {
	payer := uuid.New()
	payee := uuid.New()

	tests := []struct {
		name    string
		payer   uuid.UUID
		req     domain.TransferRequest
		wantErr error
	}{
		{
			name:    "rejects unknown kind",
			payer:   payer,
			req:     domain.TransferRequest{PayeeAccountID: payee, Amount: 1000, Kind: "refund"},
			wantErr: ErrInvalidKind,
		},
		{
			name:    "rejects subscription kind on transfer path",
			payer:   payer,
			req:     domain.TransferRequest{PayeeAccountID: payee, Amount: 1000, Kind: "subscription"},
			wantErr: ErrInvalidKind,
		},
		{
			name:    "rejects zero amount",
			payer:   payer,
			req:     domain.TransferRequest{PayeeAccountID: payee, Amount: 0, Kind: "purchase"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "rejects negative amount",
			payer:   payer,
			req:     domain.TransferRequest{PayeeAccountID: payee, Amount: -500, Kind: "purchase"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "rejects negative fee",
			payer:   payer,
			req:     domain.TransferRequest{PayeeAccountID: payee, Amount: 1000, PlatformFee: -1, Kind: "purchase"},
			wantErr: ErrInvalidFee,
		},
		{
			name:    "rejects fee equal to amount",
			payer:   payer,
			req:     domain.TransferRequest{PayeeAccountID: payee, Amount: 1000, PlatformFee: 1000, Kind: "purchase"},
			wantErr: ErrInvalidFee,
		},
		{
			name:    "rejects self transfer",
			payer:   payer,
			req:     domain.TransferRequest{PayeeAccountID: payer, Amount: 1000, Kind: "purchase"},
			wantErr: ErrSelfTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &serviceRepoStub{}
			service := newTestService(repo, &capturingPublisher{})

			_, err := service.ProcessTransfer(context.Background(), tt.payer, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.transferCalled {
				t.Fatal("expected validation to fail before the repository is called")
			}
		})
	}
}

func TestProcessTransfer_ExecutesAtomicTransferAndPublishes(t *testing.T) {
	payer := uuid.New()
	payee := uuid.New()
	repo := &serviceRepoStub{}
	producer := &capturingPublisher{}
	service := newTestService(repo, producer)

	receipt, err := service.ProcessTransfer(context.Background(), payer, domain.TransferRequest{
		PayeeAccountID: payee,
		Amount:         12000,
		PlatformFee:    600,
		Kind:           "purchase",
		Description:    "vintage lamp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := repo.transferParams
	if params.PayerID != payer || params.PayeeID != payee {
		t.Fatalf("expected transfer between %s and %s, got %s and %s", payer, payee, params.PayerID, params.PayeeID)
	}
	if params.Amount != 12000 || params.PlatformFee != 600 {
		t.Fatalf("expected amount 12000 fee 600, got %d and %d", params.Amount, params.PlatformFee)
	}
	if params.Kind != domain.ReceiptKindPurchase {
		t.Fatalf("expected purchase kind, got %q", params.Kind)
	}
	if params.Description != "vintage lamp" {
		t.Fatalf("expected description to pass through, got %q", params.Description)
	}
	if params.ReceiptID == uuid.Nil {
		t.Fatal("expected a generated receipt id")
	}
	if !strings.HasPrefix(params.Token, "txn_") {
		t.Fatalf("expected txn_ token prefix, got %q", params.Token)
	}

	if len(producer.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(producer.published))
	}
	pub := producer.published[0]
	if pub.exchange != testEventsExchange || pub.routingKey != "transfer.completed" {
		t.Fatalf("expected transfer.completed on %s, got %s on %s", testEventsExchange, pub.routingKey, pub.exchange)
	}
	event, ok := pub.body.(domain.TransferCompletedEvent)
	if !ok {
		t.Fatalf("expected TransferCompletedEvent body, got %T", pub.body)
	}
	if event.ReceiptID != receipt.ID || event.Token != receipt.Token {
		t.Fatal("expected event to carry the receipt identity")
	}
}

func TestProcessTransfer_SurvivesPublishFailure(t *testing.T) {
	repo := &serviceRepoStub{}
	producer := &capturingPublisher{publishErr: errors.New("broker gone")}
	service := newTestService(repo, producer)

	receipt, err := service.ProcessTransfer(context.Background(), uuid.New(), domain.TransferRequest{
		PayeeAccountID: uuid.New(),
		Amount:         1000,
		Kind:           "purchase",
	})
	if err != nil {
		t.Fatalf("expected committed transfer to succeed despite publish failure, got %v", err)
	}
	if receipt == nil {
		t.Fatal("expected a receipt")
	}
}

func TestProcessTransfer_PropagatesInsufficientFunds(t *testing.T) {
	repo := &serviceRepoStub{transferErr: store.ErrInsufficientFunds}
	producer := &capturingPublisher{}
	service := newTestService(repo, producer)

	_, err := service.ProcessTransfer(context.Background(), uuid.New(), domain.TransferRequest{
		PayeeAccountID: uuid.New(),
		Amount:         1000,
		Kind:           "purchase",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds to surface through the wrap, got %v", err)
	}
	if len(producer.published) != 0 {
		t.Fatal("expected no event for a failed transfer")
	}
}

func TestProcessGift_UsesGiftKindAndExplicitPayer(t *testing.T) {
	operator := uuid.New()
	recipient := uuid.New()
	repo := &serviceRepoStub{}
	service := newTestService(repo, &capturingPublisher{})

	receipt, err := service.ProcessGift(context.Background(), domain.GiftRequest{
		PayerAccountID: operator,
		PayeeAccountID: recipient,
		Amount:         5000,
		Note:           "welcome aboard",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.transferParams.PayerID != operator {
		t.Fatalf("expected payer %s from the request body, got %s", operator, repo.transferParams.PayerID)
	}
	if repo.transferParams.Kind != domain.ReceiptKindGift {
		t.Fatalf("expected gift kind, got %q", repo.transferParams.Kind)
	}
	if repo.transferParams.PlatformFee != 0 {
		t.Fatalf("expected no platform fee on gifts, got %d", repo.transferParams.PlatformFee)
	}
	if receipt.Description != "welcome aboard" {
		t.Fatalf("expected note to become the description, got %q", receipt.Description)
	}
}

func TestListReceipts_NormalizesPagination(t *testing.T) {
	tests := []struct {
		name       string
		opts       domain.ReceiptListOptions
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults zero limit", opts: domain.ReceiptListOptions{}, wantLimit: 50, wantOffset: 0},
		{name: "caps oversized limit", opts: domain.ReceiptListOptions{Limit: 500}, wantLimit: 100, wantOffset: 0},
		{name: "floors negative offset", opts: domain.ReceiptListOptions{Limit: 10, Offset: -3}, wantLimit: 10, wantOffset: 0},
		{name: "keeps sane values", opts: domain.ReceiptListOptions{Limit: 7, Offset: 14}, wantLimit: 7, wantOffset: 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &serviceRepoStub{}
			service := newTestService(repo, &capturingPublisher{})

			if _, err := service.ListReceipts(context.Background(), uuid.New(), tt.opts); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.listOpts.Limit != tt.wantLimit || repo.listOpts.Offset != tt.wantOffset {
				t.Fatalf("expected limit %d offset %d, got %d and %d", tt.wantLimit, tt.wantOffset, repo.listOpts.Limit, repo.listOpts.Offset)
			}
		})
	}
}

func TestProvisionAccount_UsesConfiguredStartingBalance(t *testing.T) {
	repo := &serviceRepoStub{}
	service := newTestService(repo, &capturingPublisher{})

	acct, err := service.ProvisionAccount(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.createCalled {
		t.Fatal("expected CreateAccount to be called")
	}
	if repo.createStartingBalance != 250000 {
		t.Fatalf("expected starting balance 250000, got %d", repo.createStartingBalance)
	}
	if acct.Balance != 250000 {
		t.Fatalf("expected provisioned balance 250000, got %d", acct.Balance)
	}
}
