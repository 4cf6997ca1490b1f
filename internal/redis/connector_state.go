package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chargebook/internal/models"
)

// StateStore caches the live status of connectors. Records carry a bounded
// TTL; a miss means "unknown, consult the durable store" and must never be
// read as AVAILABLE.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore returns a projection store with the given record TTL.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StateStore{client: client, ttl: ttl}
}

func connectorStateKey(stationID, connectorID int64) string {
	return fmt.Sprintf("connector_state:%d:%d", stationID, connectorID)
}

func stationConnectorsKey(stationID int64) string {
	return fmt.Sprintf("station_connectors:%d", stationID)
}

// Update writes the per-connector record and mirrors it into the station
// aggregate hash, both with the store TTL.
func (s *StateStore) Update(ctx context.Context, state models.ConnectorState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("state store: encode state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, connectorStateKey(state.StationID, state.ConnectorID), payload, s.ttl)
	pipe.HSet(ctx, stationConnectorsKey(state.StationID), strconv.FormatInt(state.ConnectorID, 10), payload)
	pipe.Expire(ctx, stationConnectorsKey(state.StationID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state store: update: %w", err)
	}
	return nil
}

// Get returns the cached state for a connector, or nil on a cache miss.
func (s *StateStore) Get(ctx context.Context, stationID, connectorID int64) (*models.ConnectorState, error) {
	payload, err := s.client.Get(ctx, connectorStateKey(stationID, connectorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("state store: get: %w", err)
	}
	var state models.ConnectorState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("state store: decode state: %w", err)
	}
	return &state, nil
}

// StationConnectors returns every cached connector state for a station.
func (s *StateStore) StationConnectors(ctx context.Context, stationID int64) ([]models.ConnectorState, error) {
	entries, err := s.client.HGetAll(ctx, stationConnectorsKey(stationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("state store: station connectors: %w", err)
	}

	states := make([]models.ConnectorState, 0, len(entries))
	for _, payload := range entries {
		var state models.ConnectorState
		if err := json.Unmarshal([]byte(payload), &state); err != nil {
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

// BatchUpdate writes many states in one pipeline, used when vendor feeds emit
// bursts of status changes.
func (s *StateStore) BatchUpdate(ctx context.Context, states []models.ConnectorState) error {
	if len(states) == 0 {
		return nil
	}

	now := time.Now().UTC()
	pipe := s.client.TxPipeline()
	for _, state := range states {
		if state.UpdatedAt.IsZero() {
			state.UpdatedAt = now
		}
		payload, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("state store: encode state: %w", err)
		}
		pipe.Set(ctx, connectorStateKey(state.StationID, state.ConnectorID), payload, s.ttl)
		pipe.HSet(ctx, stationConnectorsKey(state.StationID), strconv.FormatInt(state.ConnectorID, 10), payload)
		pipe.Expire(ctx, stationConnectorsKey(state.StationID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state store: batch update: %w", err)
	}
	return nil
}
