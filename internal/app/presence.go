/**
 * @description
 * This file implements presence tracking on a bounded-lifetime Redis keyspace.
 * Each heartbeat refreshes a per-account key with a TTL, so entries vanish on
 * their own when a client stops heartbeating. Keeping presence out of process
 * memory means it survives restarts and is shared across server instances.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const presenceScanCount = 100

// ErrPresenceUnavailable is returned when the presence store cannot be
// reached. Only the presence endpoints depend on Redis; money movement does not.
var ErrPresenceUnavailable = errors.New("presence store unavailable")

// PresenceEntry pairs an online account with its last heartbeat time.
type PresenceEntry struct {
	AccountID uuid.UUID `json:"account_id"`
	LastSeen  time.Time `json:"last_seen"`
}

// PresenceTracker records who is online in Redis.
type PresenceTracker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewPresenceTracker creates a presence tracker. The client may be nil when
// Redis is down at boot; every method then reports ErrPresenceUnavailable.
func NewPresenceTracker(client redis.UniversalClient, prefix string, ttl time.Duration) *PresenceTracker {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "presence"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	return &PresenceTracker{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

func (p *PresenceTracker) key(accountID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", p.prefix, accountID)
}

// parseAccountID recovers the account id from a presence key.
func (p *PresenceTracker) parseAccountID(key string) (uuid.UUID, bool) {
	raw := strings.TrimPrefix(key, p.prefix+":")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Heartbeat marks the account online for the configured lifetime. Clients call
// this on connect and then periodically while connected.
func (p *PresenceTracker) Heartbeat(ctx context.Context, accountID uuid.UUID) error {
	if p == nil || p.client == nil {
		return ErrPresenceUnavailable
	}
	lastSeen := time.Now().UTC().Format(time.RFC3339)
	if err := p.client.Set(ctx, p.key(accountID), lastSeen, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

// Offline removes the account's presence entry on explicit disconnect. Without
// it the entry simply lapses after the TTL.
func (p *PresenceTracker) Offline(ctx context.Context, accountID uuid.UUID) error {
	if p == nil || p.client == nil {
		return ErrPresenceUnavailable
	}
	if err := p.client.Del(ctx, p.key(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

// Online lists every account with a live presence entry, most recent heartbeat
// first. It walks the keyspace with SCAN so it never blocks Redis on a large
// online population.
func (p *PresenceTracker) Online(ctx context.Context) ([]PresenceEntry, error) {
	if p == nil || p.client == nil {
		return nil, ErrPresenceUnavailable
	}

	var (
		entries []PresenceEntry
		cursor  uint64
	)
	pattern := p.prefix + ":*"
	for {
		keys, next, err := p.client.Scan(ctx, cursor, pattern, presenceScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan presence keys: %w", err)
		}
		if len(keys) > 0 {
			values, err := p.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to read presence entries: %w", err)
			}
			for i, raw := range values {
				// nil means the key lapsed between SCAN and MGET.
				val, ok := raw.(string)
				if !ok {
					continue
				}
				id, ok := p.parseAccountID(keys[i])
				if !ok {
					continue
				}
				lastSeen, err := time.Parse(time.RFC3339, val)
				if err != nil {
					continue
				}
				entries = append(entries, PresenceEntry{AccountID: id, LastSeen: lastSeen})
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries, nil
}
