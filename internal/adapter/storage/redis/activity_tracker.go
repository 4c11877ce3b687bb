package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// Retention windows for the trailing-window queries the guardrails run.
const (
	lastActivityTTL = 48 * time.Hour
	weeklyWindow    = 7 * 24 * time.Hour
	weeklyTTL       = 8 * 24 * time.Hour
	locationTTL     = 2 * time.Hour
	deviceTTL       = 30 * 24 * time.Hour
)

// ActivityTracker implements ports.ActivityTracker on Redis. All state is
// keyed with TTLs matching each guardrail's trailing window, so the store
// self-prunes and reads stay O(1) or O(log n).
type ActivityTracker struct {
	client *goredis.Client
	prefix string
}

// NewActivityTracker creates a Redis-backed activity tracker.
func NewActivityTracker(client *goredis.Client) *ActivityTracker {
	return &ActivityTracker{
		client: client,
		prefix: "activity:",
	}
}

func (t *ActivityTracker) lastKey(actorID string, opType domain.EntryType) string {
	return fmt.Sprintf("%slast:%s:%s", t.prefix, actorID, opType)
}

func (t *ActivityTracker) weekKey(dni string, opType domain.EntryType) string {
	return fmt.Sprintf("%sweek:%s:%s", t.prefix, dni, opType)
}

func (t *ActivityTracker) locationKey(actorID string) string {
	return t.prefix + "loc:" + actorID
}

func (t *ActivityTracker) deviceKey(actorID string) string {
	return t.prefix + "dev:" + actorID
}

// LastActivity returns when the actor last performed an operation of the
// given type, or nil if none is on record.
func (t *ActivityTracker) LastActivity(ctx context.Context, actorID string, opType domain.EntryType) (*time.Time, error) {
	val, err := t.client.Get(ctx, t.lastKey(actorID, opType)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis last activity: %w", err)
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse last activity timestamp: %w", err)
	}
	at := time.Unix(0, nanos).UTC()
	return &at, nil
}

// WeeklyCount returns the number of same-type operations recorded for the DNI
// over the trailing seven days. Expired members are pruned on read.
func (t *ActivityTracker) WeeklyCount(ctx context.Context, dni string, opType domain.EntryType) (int64, error) {
	key := t.weekKey(dni, opType)
	cutoff := time.Now().Add(-weeklyWindow).UnixNano()

	if err := t.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, fmt.Errorf("redis weekly prune: %w", err)
	}
	count, err := t.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis weekly count: %w", err)
	}
	return count, nil
}

type locationSample struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	At  time.Time `json:"at"`
}

// LastLocation returns the actor's most recent location sample, or nil.
func (t *ActivityTracker) LastLocation(ctx context.Context, actorID string) (*ports.LocationSample, error) {
	val, err := t.client.Get(ctx, t.locationKey(actorID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis last location: %w", err)
	}
	var s locationSample
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("unmarshal location sample: %w", err)
	}
	return &ports.LocationSample{
		Point: domain.GeoPoint{Lat: s.Lat, Lng: s.Lng},
		At:    s.At,
	}, nil
}

// IsKnownDevice reports whether the device was already seen for the actor.
func (t *ActivityTracker) IsKnownDevice(ctx context.Context, actorID, deviceID string) (bool, error) {
	known, err := t.client.SIsMember(ctx, t.deviceKey(actorID), deviceID).Result()
	if err != nil {
		return false, fmt.Errorf("redis device membership: %w", err)
	}
	return known, nil
}

// DeviceCount returns the number of distinct devices seen for the actor.
func (t *ActivityTracker) DeviceCount(ctx context.Context, actorID string) (int64, error) {
	count, err := t.client.SCard(ctx, t.deviceKey(actorID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis device count: %w", err)
	}
	return count, nil
}

// Observe records an accepted candidate. Each write refreshes its key's TTL
// so state survives exactly as long as its guardrail window needs it.
func (t *ActivityTracker) Observe(ctx context.Context, c domain.Candidate, at time.Time) error {
	pipe := t.client.TxPipeline()

	nanos := at.UnixNano()
	pipe.Set(ctx, t.lastKey(c.ActorID, c.OperationType), strconv.FormatInt(nanos, 10), lastActivityTTL)

	if c.DNI != "" {
		weekKey := t.weekKey(c.DNI, c.OperationType)
		pipe.ZAdd(ctx, weekKey, goredis.Z{
			Score:  float64(nanos),
			Member: strconv.FormatInt(nanos, 10),
		})
		pipe.Expire(ctx, weekKey, weeklyTTL)
	}

	if c.Location != nil {
		raw, err := json.Marshal(locationSample{Lat: c.Location.Lat, Lng: c.Location.Lng, At: at})
		if err != nil {
			return fmt.Errorf("marshal location sample: %w", err)
		}
		pipe.Set(ctx, t.locationKey(c.ActorID), raw, locationTTL)
	}

	if c.DeviceID != "" {
		devKey := t.deviceKey(c.ActorID)
		pipe.SAdd(ctx, devKey, c.DeviceID)
		pipe.Expire(ctx, devKey, deviceTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis observe: %w", err)
	}
	return nil
}
