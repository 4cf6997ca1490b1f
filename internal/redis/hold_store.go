package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chargebook/internal/models"
)

// Hold store errors. SLOT_ALREADY_HELD and OVERLAPPING_HOLD are retryable
// conflicts; HOLD_NOT_FOUND is expected on expiry races and callers treat it
// as a no-op.
var (
	ErrSlotAlreadyHeld = errors.New("slot already held")
	ErrOverlappingHold = errors.New("overlapping hold")
	ErrHoldNotFound    = errors.New("hold not found")
)

const (
	// indexTTLSlack keeps the per-connector hold index alive slightly longer
	// than the holds it references so dead members can still be swept.
	indexTTLSlack = 60 * time.Second

	resultOK              = "OK"
	resultAlreadyHeld     = "SLOT_ALREADY_HELD"
	resultOverlappingHold = "OVERLAPPING_HOLD"
)

// createHoldScript performs the whole check-and-set atomically on the server:
// reject an identical hold, reject any overlapping live hold on the same
// connector (sweeping expired index members on the way), then write the hold,
// its token index and the connector index entry. Two ranges overlap iff
// newStart < existingEnd and newEnd > existingStart.
var createHoldScript = redis.NewScript(`
local holdKey = KEYS[1]
local tokenKey = KEYS[2]
local indexKey = KEYS[3]
local newStart = tonumber(ARGV[1])
local newEnd = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local indexTTL = tonumber(ARGV[4])
local payload = ARGV[5]

if redis.call("EXISTS", holdKey) == 1 then
  return "SLOT_ALREADY_HELD"
end

local members = redis.call("SMEMBERS", indexKey)
for i = 1, #members do
  local member = members[i]
  if redis.call("EXISTS", member) == 1 then
    local parts = {}
    for part in string.gmatch(member, "[^:]+") do
      parts[#parts + 1] = part
    end
    local existingStart = tonumber(parts[#parts - 1])
    local existingEnd = tonumber(parts[#parts])
    if newStart < existingEnd and newEnd > existingStart then
      return "OVERLAPPING_HOLD"
    end
  else
    redis.call("SREM", indexKey, member)
  end
end

redis.call("SET", holdKey, payload, "EX", ttl)
redis.call("SET", tokenKey, holdKey, "EX", ttl)
redis.call("SADD", indexKey, holdKey)
redis.call("EXPIRE", indexKey, indexTTL)
return "OK"
`)

// releaseHoldScript removes the hold, its token index and its connector index
// entry in one server-side step. Returns 0 when the token is already gone.
// The hold key and connector index are derived inside the script from the
// token's value, so they are not declared in KEYS; this requires a single-node
// redis, where no key-slot validation applies.
var releaseHoldScript = redis.NewScript(`
local holdKey = redis.call("GET", KEYS[1])
if not holdKey then
  return 0
end
local connectorID = string.match(holdKey, "^hold:(%d+):")
redis.call("DEL", holdKey)
redis.call("DEL", KEYS[1])
if connectorID then
  redis.call("SREM", "connector_holds:" .. connectorID, holdKey)
end
return 1
`)

// verifyHoldScript resolves token -> hold key -> payload in one round trip.
var verifyHoldScript = redis.NewScript(`
local holdKey = redis.call("GET", KEYS[1])
if not holdKey then
  return false
end
return redis.call("GET", holdKey)
`)

// HoldStore implements atomic, TTL-bound slot locking in redis. TTL expiry is
// the sole garbage collection mechanism, which keeps the store self-healing
// when clients crash mid-checkout.
type HoldStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHoldStore returns a hold store with the given hold TTL.
func NewHoldStore(client *redis.Client, ttl time.Duration) *HoldStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HoldStore{client: client, ttl: ttl}
}

// TTL returns the hold lifetime.
func (s *HoldStore) TTL() time.Duration {
	return s.ttl
}

func holdKey(connectorID int64, start, end time.Time) string {
	return fmt.Sprintf("hold:%d:%d:%d", connectorID, start.Unix(), end.Unix())
}

func tokenKey(token string) string {
	return fmt.Sprintf("hold_token:%s", token)
}

func connectorHoldsKey(connectorID int64) string {
	return fmt.Sprintf("connector_holds:%d", connectorID)
}

// Create writes a new hold for the connector/window pair. It fails with
// ErrSlotAlreadyHeld when an identical hold exists and ErrOverlappingHold when
// any live hold on the connector overlaps the window.
func (s *HoldStore) Create(ctx context.Context, hold models.Hold) (models.Hold, error) {
	hold.Token = uuid.NewString()
	hold.CreatedAt = time.Now().UTC()
	hold.TTLSeconds = int(s.ttl.Seconds())

	payload, err := json.Marshal(hold)
	if err != nil {
		return models.Hold{}, fmt.Errorf("hold store: encode hold: %w", err)
	}

	keys := []string{
		holdKey(hold.ConnectorID, hold.StartTS, hold.EndTS),
		tokenKey(hold.Token),
		connectorHoldsKey(hold.ConnectorID),
	}
	args := []interface{}{
		hold.StartTS.Unix(),
		hold.EndTS.Unix(),
		int(s.ttl.Seconds()),
		int((s.ttl + indexTTLSlack).Seconds()),
		payload,
	}

	result, err := createHoldScript.Run(ctx, s.client, keys, args...).Text()
	if err != nil {
		return models.Hold{}, fmt.Errorf("hold store: create: %w", err)
	}

	switch result {
	case resultOK:
		return hold, nil
	case resultAlreadyHeld:
		return models.Hold{}, ErrSlotAlreadyHeld
	case resultOverlappingHold:
		return models.Hold{}, ErrOverlappingHold
	default:
		return models.Hold{}, fmt.Errorf("hold store: unexpected script result %q", result)
	}
}

// Release removes the hold behind the token. Idempotent: a token that already
// expired or was released returns ErrHoldNotFound, which callers treat as
// success.
func (s *HoldStore) Release(ctx context.Context, token string) error {
	removed, err := releaseHoldScript.Run(ctx, s.client, []string{tokenKey(token)}).Int()
	if err != nil {
		return fmt.Errorf("hold store: release: %w", err)
	}
	if removed == 0 {
		return ErrHoldNotFound
	}
	return nil
}

// Verify resolves a token to its hold payload. ErrHoldNotFound means the hold
// expired or never existed.
func (s *HoldStore) Verify(ctx context.Context, token string) (*models.Hold, error) {
	payload, err := verifyHoldScript.Run(ctx, s.client, []string{tokenKey(token)}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrHoldNotFound
		}
		return nil, fmt.Errorf("hold store: verify: %w", err)
	}

	var hold models.Hold
	if err := json.Unmarshal([]byte(payload), &hold); err != nil {
		return nil, fmt.Errorf("hold store: decode hold: %w", err)
	}
	return &hold, nil
}

// ConnectorHolds returns the live hold windows for a connector, skipping
// index members whose hold already expired.
func (s *HoldStore) ConnectorHolds(ctx context.Context, connectorID int64) ([]models.HoldWindow, error) {
	members, err := s.client.SMembers(ctx, connectorHoldsKey(connectorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hold store: list connector holds: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(members))
	for i, member := range members {
		existsCmds[i] = pipe.Exists(ctx, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("hold store: check connector holds: %w", err)
	}

	var windows []models.HoldWindow
	for i, member := range members {
		if existsCmds[i].Val() == 0 {
			continue
		}
		window, ok := parseHoldKey(member)
		if !ok {
			continue
		}
		windows = append(windows, window)
	}
	return windows, nil
}

// parseHoldKey extracts the [start, end) window from a hold:<connector>:<start>:<end> key.
func parseHoldKey(key string) (models.HoldWindow, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "hold" {
		return models.HoldWindow{}, false
	}
	start, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return models.HoldWindow{}, false
	}
	end, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return models.HoldWindow{}, false
	}
	return models.HoldWindow{
		Key:   key,
		Start: time.Unix(start, 0).UTC(),
		End:   time.Unix(end, 0).UTC(),
	}, true
}
