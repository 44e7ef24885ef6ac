package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewPresenceTracker_NormalizesArguments(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		ttl        time.Duration
		wantPrefix string
		wantTTL    time.Duration
	}{
		{name: "defaults empty prefix", prefix: "", ttl: time.Minute, wantPrefix: "presence", wantTTL: time.Minute},
		{name: "trims trailing colon", prefix: "online:", ttl: time.Minute, wantPrefix: "online", wantTTL: time.Minute},
		{name: "defaults zero ttl", prefix: "presence", ttl: 0, wantPrefix: "presence", wantTTL: 2 * time.Minute},
		{name: "defaults negative ttl", prefix: "presence", ttl: -time.Second, wantPrefix: "presence", wantTTL: 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewPresenceTracker(nil, tt.prefix, tt.ttl)
			if tracker.prefix != tt.wantPrefix {
				t.Fatalf("expected prefix %q, got %q", tt.wantPrefix, tracker.prefix)
			}
			if tracker.ttl != tt.wantTTL {
				t.Fatalf("expected ttl %s, got %s", tt.wantTTL, tracker.ttl)
			}
		})
	}
}

func TestPresenceTracker_UnavailableWithoutClient(t *testing.T) {
	tracker := NewPresenceTracker(nil, "presence", time.Minute)
	ctx := context.Background()
	accountID := uuid.New()

	if err := tracker.Heartbeat(ctx, accountID); !errors.Is(err, ErrPresenceUnavailable) {
		t.Fatalf("expected presence unavailable from Heartbeat, got %v", err)
	}
	if err := tracker.Offline(ctx, accountID); !errors.Is(err, ErrPresenceUnavailable) {
		t.Fatalf("expected presence unavailable from Offline, got %v", err)
	}
	if _, err := tracker.Online(ctx); !errors.Is(err, ErrPresenceUnavailable) {
		t.Fatalf("expected presence unavailable from Online, got %v", err)
	}
}

func TestPresenceTracker_KeyRoundTrip(t *testing.T) {
	tracker := NewPresenceTracker(nil, "presence", time.Minute)
	accountID := uuid.New()

	id, ok := tracker.parseAccountID(tracker.key(accountID))
	if !ok {
		t.Fatal("expected the tracker to parse its own key")
	}
	if id != accountID {
		t.Fatalf("expected %s, got %s", accountID, id)
	}
}

func TestPresenceTracker_ParseAccountIDRejectsGarbage(t *testing.T) {
	tracker := NewPresenceTracker(nil, "presence", time.Minute)

	if _, ok := tracker.parseAccountID("presence:not-a-uuid"); ok {
		t.Fatal("expected garbage key to be rejected")
	}
	if _, ok := tracker.parseAccountID("other:" + uuid.NewString()); ok {
		t.Fatal("expected key with foreign prefix to be rejected")
	}
}
