package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/vendora/ledger-service/internal/domain"
)

type sweepRepoStub struct {
	expired   int64
	expireErr error

	demoted      []uuid.UUID
	demoteErr    error
	demoteCalled bool
}

func (s *sweepRepoStub) ExpireStaleWindows(ctx context.Context) (int64, error) {
	if s.expireErr != nil {
		return 0, s.expireErr
	}
	return s.expired, nil
}

func (s *sweepRepoStub) DemoteLapsedAccounts(ctx context.Context) ([]uuid.UUID, error) {
	s.demoteCalled = true
	if s.demoteErr != nil {
		return nil, s.demoteErr
	}
	return s.demoted, nil
}

func newTestJobs(repo Repository, producer *capturingPublisher) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobs(repo, producer, testEventsExchange, logger)
}

func TestExpireSubscriptions_PublishesEventPerDemotedAccount(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	repo := &sweepRepoStub{expired: 3, demoted: []uuid.UUID{first, second}}
	producer := &capturingPublisher{}
	jobs := newTestJobs(repo, producer)

	jobs.ExpireSubscriptions()

	if len(producer.published) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(producer.published))
	}
	for i, want := range []uuid.UUID{first, second} {
		pub := producer.published[i]
		if pub.routingKey != "subscription.expired" {
			t.Fatalf("expected subscription.expired, got %q", pub.routingKey)
		}
		event, ok := pub.body.(domain.SubscriptionExpiredEvent)
		if !ok {
			t.Fatalf("expected SubscriptionExpiredEvent body, got %T", pub.body)
		}
		if event.AccountID != want {
			t.Fatalf("expected event for account %s, got %s", want, event.AccountID)
		}
	}
}

func TestExpireSubscriptions_QuietWhenNothingLapsed(t *testing.T) {
	repo := &sweepRepoStub{}
	producer := &capturingPublisher{}
	jobs := newTestJobs(repo, producer)

	jobs.ExpireSubscriptions()

	if len(producer.published) != 0 {
		t.Fatalf("expected no events for an empty sweep, got %d", len(producer.published))
	}
}

func TestExpireSubscriptions_StopsWhenExpireFails(t *testing.T) {
	repo := &sweepRepoStub{expireErr: errors.New("db unavailable")}
	producer := &capturingPublisher{}
	jobs := newTestJobs(repo, producer)

	jobs.ExpireSubscriptions()

	if repo.demoteCalled {
		t.Fatal("expected demotion to be skipped when expiring windows fails")
	}
	if len(producer.published) != 0 {
		t.Fatal("expected no events when the sweep fails")
	}
}

func TestExpireSubscriptions_ContinuesWhenPublishFails(t *testing.T) {
	repo := &sweepRepoStub{demoted: []uuid.UUID{uuid.New(), uuid.New()}}
	producer := &capturingPublisher{publishErr: errors.New("broker gone")}
	jobs := newTestJobs(repo, producer)

	jobs.ExpireSubscriptions()

	if len(producer.published) != 2 {
		t.Fatalf("expected a publish attempt per demoted account, got %d", len(producer.published))
	}
}
