/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/app"
	"github.com/vendora/ledger-service/internal/domain"
	"github.com/vendora/ledger-service/internal/store"
)

// LedgerHandlers holds the application services the handlers use.
type LedgerHandlers struct {
	service  *app.Service
	presence *app.PresenceTracker
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service, presence *app.PresenceTracker) *LedgerHandlers {
	return &LedgerHandlers{service: service, presence: presence}
}

// callerAccountID extracts the authenticated caller's account id from the
// request context. It writes the error response itself so handlers can simply
// return on failure.
func (h *LedgerHandlers) callerAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	subject, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get account ID from context")
		return uuid.Nil, false
	}
	accountID, err := uuid.Parse(subject)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "Token subject is not a valid account ID")
		return uuid.Nil, false
	}
	return accountID, true
}

// pathAccountID parses the {accountID} URL parameter on internal routes.
func (h *LedgerHandlers) pathAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID format")
		return uuid.Nil, false
	}
	return accountID, true
}

// TransferHandler handles purchase and gift transfers initiated by the
// authenticated caller, who is always the payer.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	payerID, ok := h.callerAccountID(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=accepted payer_id=%s payee_id=%s amount=%d kind=%s", payerID, req.PayeeAccountID, req.Amount, req.Kind)

	receipt, err := h.service.ProcessTransfer(r.Context(), payerID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed payer_id=%s err=%v", payerID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, receipt)
}

// GetMyAccountHandler returns the caller's own balance view.
func (h *LedgerHandlers) GetMyAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.callerAccountID(w, r)
	if !ok {
		return
	}

	acct, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=get_account outcome=failed account_id=%s err=%v", accountID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, acct.View())
}

// ListMyReceiptsHandler returns the caller's receipt history, newest first.
func (h *LedgerHandlers) ListMyReceiptsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.callerAccountID(w, r)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	receipts, err := h.service.ListReceipts(r.Context(), accountID, domain.ReceiptListOptions{Limit: limit, Offset: offset})
	if err != nil {
		log.Printf("level=error component=api endpoint=list_receipts outcome=failed account_id=%s err=%v", accountID, err)
		h.writeServiceError(w, err)
		return
	}
	if receipts == nil {
		receipts = []domain.TransactionReceipt{}
	}

	h.writeJSON(w, http.StatusOK, receipts)
}

// PurchaseSubscriptionHandler handles the "get verified" action for the caller.
func (h *LedgerHandlers) PurchaseSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.callerAccountID(w, r)
	if !ok {
		return
	}

	log.Printf("level=info component=api endpoint=purchase_subscription outcome=accepted account_id=%s", accountID)

	window, err := h.service.PurchaseSubscription(r.Context(), accountID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=purchase_subscription outcome=failed account_id=%s err=%v", accountID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, window)
}

// CurrentSubscriptionHandler returns the caller's active verification window.
func (h *LedgerHandlers) CurrentSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.callerAccountID(w, r)
	if !ok {
		return
	}

	window, err := h.service.CurrentWindow(r.Context(), accountID)
	if err != nil {
		if !errors.Is(err, store.ErrWindowNotFound) {
			log.Printf("level=error component=api endpoint=current_subscription outcome=failed account_id=%s err=%v", accountID, err)
		}
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, window)
}

// HeartbeatHandler refreshes the caller's presence entry.
func (h *LedgerHandlers) HeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.callerAccountID(w, r)
	if !ok {
		return
	}

	if err := h.presence.Heartbeat(r.Context(), accountID); err != nil {
		log.Printf("level=warn component=api endpoint=presence_heartbeat outcome=failed account_id=%s err=%v", accountID, err)
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OfflineHandler removes the caller's presence entry on explicit disconnect.
func (h *LedgerHandlers) OfflineHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.callerAccountID(w, r)
	if !ok {
		return
	}

	if err := h.presence.Offline(r.Context(), accountID); err != nil {
		log.Printf("level=warn component=api endpoint=presence_offline outcome=failed account_id=%s err=%v", accountID, err)
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OnlineHandler lists every account with a live presence entry.
func (h *LedgerHandlers) OnlineHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.presence.Online(r.Context())
	if err != nil {
		log.Printf("level=warn component=api endpoint=presence_online outcome=failed err=%v", err)
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []app.PresenceEntry{}
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// ProvisionAccountHandler handles internal requests to provision a balance
// record. It backs up the event-driven path when the broker is unavailable.
func (h *LedgerHandlers) ProvisionAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID uuid.UUID `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	acct, err := h.service.ProvisionAccount(r.Context(), req.AccountID)
	if err != nil {
		log.Printf("level=error component=api endpoint=provision_account outcome=failed account_id=%s err=%v", req.AccountID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, acct)
}

// GetAccountHandler returns the full account record, including operator-only
// fields, for internal callers.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathAccountID(w, r)
	if !ok {
		return
	}

	acct, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, acct)
}

// DisableAccountHandler soft-disables an account.
func (h *LedgerHandlers) DisableAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathAccountID(w, r)
	if !ok {
		return
	}

	if err := h.service.DisableAccount(r.Context(), accountID); err != nil {
		log.Printf("level=warn component=api endpoint=disable_account outcome=failed account_id=%s err=%v", accountID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Account disabled"})
}

// GiftHandler handles the operator "gift money" action. Unlike the public
// transfer endpoint the payer is named in the body, since internal callers do
// not carry a user identity.
func (h *LedgerHandlers) GiftHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.GiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log.Printf("level=info component=api endpoint=gift outcome=accepted payer_id=%s payee_id=%s amount=%d", req.PayerAccountID, req.PayeeAccountID, req.Amount)

	receipt, err := h.service.ProcessGift(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=gift outcome=failed payer_id=%s err=%v", req.PayerAccountID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, receipt)
}

// GrantVerificationHandler marks an account verified permanently, with no fee
// and no expiry.
func (h *LedgerHandlers) GrantVerificationHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID uuid.UUID `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	if err := h.service.GrantVerification(r.Context(), req.AccountID); err != nil {
		log.Printf("level=warn component=api endpoint=grant_verification outcome=failed account_id=%s err=%v", req.AccountID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Verification granted"})
}

// RevokeVerificationHandler clears an account's verified status and cancels
// any active window.
func (h *LedgerHandlers) RevokeVerificationHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathAccountID(w, r)
	if !ok {
		return
	}

	if err := h.service.RevokeVerification(r.Context(), accountID); err != nil {
		log.Printf("level=warn component=api endpoint=revoke_verification outcome=failed account_id=%s err=%v", accountID, err)
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Verification revoked"})
}

// writeServiceError maps service-layer errors to HTTP responses. Every error
// in the taxonomy is terminal for the operation that raised it; only the 503
// class is worth a caller retry.
func (h *LedgerHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrWindowNotFound):
		h.writeError(w, http.StatusNotFound, "No active subscription window")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient funds")
	case errors.Is(err, store.ErrAlreadyVerified), errors.Is(err, store.ErrActiveWindowExists):
		h.writeError(w, http.StatusConflict, "Account is already verified")
	case errors.Is(err, store.ErrAccountDisabled):
		h.writeError(w, http.StatusForbidden, "Account is disabled")
	case errors.Is(err, app.ErrSelfTransfer):
		h.writeError(w, http.StatusBadRequest, "Payer and payee must be different accounts")
	case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrInvalidFee), errors.Is(err, app.ErrInvalidKind):
		h.writeError(w, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, store.ErrStorageUnavailable), errors.Is(err, app.ErrPresenceUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// rootMessage strips the "failed to ..." wrapping so validation responses read
// as plain sentences.
func rootMessage(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	return msg
}

// parseOptionalInt parses a query parameter, returning the fallback when the
// parameter is absent.
func parseOptionalInt(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
