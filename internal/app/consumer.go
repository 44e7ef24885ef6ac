/**
 * @description
 * This file defines the event handlers that process messages from RabbitMQ.
 * The identity service announces user lifecycle changes; the ledger reacts by
 * provisioning or soft-disabling the matching account.
 *
 * Handlers return true to acknowledge a delivery and false to requeue it:
 * malformed payloads are acked (a poison message never becomes a requeue
 * loop), storage failures are requeued for a later retry.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/domain"
	"github.com/vendora/ledger-service/internal/store"
)

const consumerTimeout = 15 * time.Second

// AccountEventHandler handles user lifecycle events from the identity service.
type AccountEventHandler struct {
	service *Service
}

// NewAccountEventHandler creates a new instance of AccountEventHandler.
func NewAccountEventHandler(service *Service) *AccountEventHandler {
	return &AccountEventHandler{service: service}
}

// HandleUserRegistered provisions the balance record for a new user.
func (h *AccountEventHandler) HandleUserRegistered(body []byte) bool {
	var event domain.UserRegisteredEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("account-consumer: failed to unmarshal user.registered payload: %v", err)
		return true // Acknowledge malformed message.
	}

	accountID, err := uuid.Parse(event.UserID)
	if err != nil {
		log.Printf("account-consumer: invalid user id %q in user.registered event; acking", event.UserID)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	acct, err := h.service.ProvisionAccount(ctx, accountID)
	if err != nil {
		log.Printf("account-consumer: provisioning error for account %s: %v", accountID, err)
		return false
	}

	log.Printf("account-consumer: account %s ready with balance %d", acct.ID, acct.Balance)
	return true
}

// HandleUserDeleted soft-disables the departed user's account.
func (h *AccountEventHandler) HandleUserDeleted(body []byte) bool {
	var event domain.UserDeletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("account-consumer: failed to unmarshal user.deleted payload: %v", err)
		return true // Acknowledge malformed message.
	}

	accountID, err := uuid.Parse(event.UserID)
	if err != nil {
		log.Printf("account-consumer: invalid user id %q in user.deleted event; acking", event.UserID)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	if err := h.service.DisableAccount(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			log.Printf("account-consumer: user.deleted for unknown account %s; acking", accountID)
			return true
		}
		log.Printf("account-consumer: disable error for account %s: %v", accountID, err)
		return false
	}

	log.Printf("account-consumer: account %s disabled", accountID)
	return true
}
