/**
 * @description
 * Scheduled job implementations for the sweeper process.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/domain"
	"github.com/vendora/ledger-service/pkg/rabbitmq"
)

// Repository defines the database operations needed by the jobs.
type Repository interface {
	ExpireStaleWindows(ctx context.Context) (int64, error)
	DemoteLapsedAccounts(ctx context.Context) ([]uuid.UUID, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo           Repository
	eventProducer  rabbitmq.Publisher
	eventsExchange string
	logger         *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo Repository, producer rabbitmq.Publisher, eventsExchange string, logger *slog.Logger) *Jobs {
	return &Jobs{
		repo:           repo,
		eventProducer:  producer,
		eventsExchange: eventsExchange,
		logger:         logger,
	}
}

// ExpireSubscriptions closes out lapsed verification state: windows whose
// period has ended flip to expired, and accounts whose paid verification has
// lapsed lose the verified flag. Operator-granted verification carries no
// expiry and is never demoted. The sweep is idempotent, so a failed run is
// simply retried on the next tick.
func (j *Jobs) ExpireSubscriptions() {
	j.logger.Info("starting subscription expiry sweep")
	ctx := context.Background()

	expired, err := j.repo.ExpireStaleWindows(ctx)
	if err != nil {
		j.logger.Error("failed to expire stale windows", "error", err)
		return
	}

	demoted, err := j.repo.DemoteLapsedAccounts(ctx)
	if err != nil {
		j.logger.Error("failed to demote lapsed accounts", "error", err)
		return
	}

	result := domain.SweepResult{
		WindowsExpired:  expired,
		AccountsDemoted: int64(len(demoted)),
		DemotedAccounts: demoted,
	}

	for _, accountID := range result.DemotedAccounts {
		event := domain.SubscriptionExpiredEvent{AccountID: accountID, ExpiredAt: time.Now()}
		if err := j.eventProducer.Publish(ctx, j.eventsExchange, "subscription.expired", event); err != nil {
			j.logger.Error("failed to publish subscription.expired", "account_id", accountID.String(), "error", err)
		}
	}

	if result.WindowsExpired == 0 && result.AccountsDemoted == 0 {
		j.logger.Info("no stale subscription state to sweep")
		return
	}

	j.logger.Info("subscription expiry sweep finished", "windows_expired", result.WindowsExpired, "accounts_demoted", result.AccountsDemoted)
}
