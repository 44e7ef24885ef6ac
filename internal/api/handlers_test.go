package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/app"
	"github.com/vendora/ledger-service/internal/domain"
	"github.com/vendora/ledger-service/internal/store"
)

type handlersRepoStub struct {
	store.Repository

	transferErr error

	account    *domain.Account
	accountErr error

	windowErr error
}

func (s *handlersRepoStub) TransferFundsAtomic(ctx context.Context, params store.TransferParams) (*domain.TransactionReceipt, error) {
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
		CreatedAt:      time.Now(),
	}, nil
}

func (s *handlersRepoStub) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	if s.account != nil {
		return s.account, nil
	}
	return &domain.Account{ID: accountID, Balance: 250000, Status: domain.AccountStatusActive}, nil
}

func (s *handlersRepoStub) FindActiveWindowByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.SubscriptionWindow, error) {
	if s.windowErr != nil {
		return nil, s.windowErr
	}
	return &domain.SubscriptionWindow{ID: uuid.New(), AccountID: accountID, Status: domain.WindowStatusActive}, nil
}

func newTestHandlers(repo store.Repository) *LedgerHandlers {
	service := app.NewService(repo, nil, "vendora.events", 500000, 250000)
	presence := app.NewPresenceTracker(nil, "presence", time.Minute)
	return NewLedgerHandlers(service, presence)
}

// authenticatedRequest builds a request carrying the caller id the way the
// auth middleware would have stored it.
func authenticatedRequest(method, target string, body string, callerID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), accountIDKey, callerID.String())
	return req.WithContext(ctx)
}

func TestTransferHandler_CreatesReceipt(t *testing.T) {
	payer := uuid.New()
	payee := uuid.New()
	handlers := newTestHandlers(&handlersRepoStub{})

	body := fmt.Sprintf(`{"payee_account_id": %q, "amount": 12000, "platform_fee": 600, "kind": "purchase"}`, payee)
	rec := httptest.NewRecorder()
	handlers.TransferHandler(rec, authenticatedRequest(http.MethodPost, "/api/v1/transfers", body, payer))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var receipt domain.TransactionReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if receipt.PayerAccountID != payer {
		t.Fatalf("expected payer %s from the token, got %s", payer, receipt.PayerAccountID)
	}
	if receipt.Amount != 12000 || receipt.PlatformFee != 600 {
		t.Fatalf("expected amount 12000 fee 600, got %d and %d", receipt.Amount, receipt.PlatformFee)
	}
	if !strings.HasPrefix(receipt.Token, "txn_") {
		t.Fatalf("expected txn_ token prefix, got %q", receipt.Token)
	}
}

func TestTransferHandler_MapsInsufficientFunds(t *testing.T) {
	handlers := newTestHandlers(&handlersRepoStub{transferErr: store.ErrInsufficientFunds})

	body := fmt.Sprintf(`{"payee_account_id": %q, "amount": 12000, "kind": "purchase"}`, uuid.New())
	rec := httptest.NewRecorder()
	handlers.TransferHandler(rec, authenticatedRequest(http.MethodPost, "/api/v1/transfers", body, uuid.New()))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
}

func TestTransferHandler_RejectsSelfTransfer(t *testing.T) {
	payer := uuid.New()
	handlers := newTestHandlers(&handlersRepoStub{})

	body := fmt.Sprintf(`{"payee_account_id": %q, "amount": 1000, "kind": "purchase"}`, payer)
	rec := httptest.NewRecorder()
	handlers.TransferHandler(rec, authenticatedRequest(http.MethodPost, "/api/v1/transfers", body, payer))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransferHandler_RejectsInvalidBody(t *testing.T) {
	handlers := newTestHandlers(&handlersRepoStub{})

	rec := httptest.NewRecorder()
	handlers.TransferHandler(rec, authenticatedRequest(http.MethodPost, "/api/v1/transfers", `{not json`, uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransferHandler_FailsWithoutAuthContext(t *testing.T) {
	handlers := newTestHandlers(&handlersRepoStub{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handlers.TransferHandler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a request that skipped auth, got %d", rec.Code)
	}
}

func TestGetMyAccountHandler_HidesOperatorFields(t *testing.T) {
	caller := uuid.New()
	repo := &handlersRepoStub{account: &domain.Account{
		ID:             caller,
		Balance:        980000,
		UnlimitedFunds: true,
		Status:         domain.AccountStatusActive,
	}}
	handlers := newTestHandlers(repo)

	rec := httptest.NewRecorder()
	handlers.GetMyAccountHandler(rec, authenticatedRequest(http.MethodGet, "/api/v1/accounts/me", "", caller))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "unlimited_funds") {
		t.Fatal("expected the owner view to hide the unlimited funds flag")
	}

	var view domain.AccountView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if view.ID != caller || view.Balance != 980000 {
		t.Fatalf("expected the caller's balance view, got %+v", view)
	}
}

func TestCurrentSubscriptionHandler_MapsMissingWindowTo404(t *testing.T) {
	handlers := newTestHandlers(&handlersRepoStub{windowErr: store.ErrWindowNotFound})

	rec := httptest.NewRecorder()
	handlers.CurrentSubscriptionHandler(rec, authenticatedRequest(http.MethodGet, "/api/v1/subscriptions/current", "", uuid.New()))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHeartbeatHandler_UnavailableWithoutRedis(t *testing.T) {
	handlers := newTestHandlers(&handlersRepoStub{})

	rec := httptest.NewRecorder()
	handlers.HeartbeatHandler(rec, authenticatedRequest(http.MethodPost, "/api/v1/presence/heartbeat", "", uuid.New()))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when presence has no backing store, got %d", rec.Code)
	}
}

func TestWriteServiceError_Taxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "account not found", err: store.ErrAccountNotFound, wantStatus: http.StatusNotFound},
		{name: "window not found", err: store.ErrWindowNotFound, wantStatus: http.StatusNotFound},
		{name: "insufficient funds", err: store.ErrInsufficientFunds, wantStatus: http.StatusPaymentRequired},
		{name: "wrapped insufficient funds", err: fmt.Errorf("failed to execute transfer: %w", store.ErrInsufficientFunds), wantStatus: http.StatusPaymentRequired},
		{name: "already verified", err: store.ErrAlreadyVerified, wantStatus: http.StatusConflict},
		{name: "active window exists", err: store.ErrActiveWindowExists, wantStatus: http.StatusConflict},
		{name: "account disabled", err: store.ErrAccountDisabled, wantStatus: http.StatusForbidden},
		{name: "self transfer", err: app.ErrSelfTransfer, wantStatus: http.StatusBadRequest},
		{name: "invalid amount", err: app.ErrInvalidAmount, wantStatus: http.StatusBadRequest},
		{name: "invalid fee", err: app.ErrInvalidFee, wantStatus: http.StatusBadRequest},
		{name: "invalid kind", err: app.ErrInvalidKind, wantStatus: http.StatusBadRequest},
		{name: "storage unavailable", err: store.ErrStorageUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "wrapped storage unavailable", err: fmt.Errorf("failed to lock account: %w", store.ErrStorageUnavailable), wantStatus: http.StatusServiceUnavailable},
		{name: "presence unavailable", err: app.ErrPresenceUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "unknown error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	handlers := &LedgerHandlers{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.writeServiceError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if body["error"] == "" {
				t.Fatal("expected an error message in the body")
			}
		})
	}
}

func TestInternalAuthMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		requiredKey string
		providedKey string
		wantStatus  int
	}{
		{name: "accepts matching key", requiredKey: "secret", providedKey: "secret", wantStatus: http.StatusOK},
		{name: "rejects wrong key", requiredKey: "secret", providedKey: "other", wantStatus: http.StatusUnauthorized},
		{name: "rejects missing key", requiredKey: "secret", providedKey: "", wantStatus: http.StatusUnauthorized},
		{name: "disabled without configured key", requiredKey: "", providedKey: "", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/accounts", nil)
			if tt.providedKey != "" {
				req.Header.Set("X-Internal-API-Key", tt.providedKey)
			}
			rec := httptest.NewRecorder()

			InternalAuthMiddleware(tt.requiredKey)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestParseOptionalInt(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "empty uses fallback", raw: "", want: 0},
		{name: "blank uses fallback", raw: "   ", want: 0},
		{name: "parses value", raw: "25", want: 25},
		{name: "parses negative", raw: "-1", want: -1},
		{name: "rejects garbage", raw: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptionalInt(tt.raw, 0)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
