package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargebook/internal/models"
	redisstore "chargebook/internal/redis"
)

type availabilityFixture struct {
	svc        *AvailabilityService
	bookings   *fakeBookings
	connectors *fakeConnectors
	holds      *fakeHolds
	state      *fakeState
	cache      *fakeAvailability
}

func newAvailabilityFixture(lookahead time.Duration, connectors ...models.Connector) *availabilityFixture {
	f := &availabilityFixture{
		bookings:   newFakeBookings(),
		connectors: newFakeConnectors(connectors...),
		holds:      newFakeHolds(),
		state:      newFakeState(),
		cache:      newFakeAvailability(),
	}
	f.svc = NewAvailabilityService(
		f.bookings, f.connectors, f.holds, f.state, f.cache,
		time.Hour, lookahead, zap.NewNop(),
	)
	return f
}

func slotStarts(slots []models.Slot, connectorID int64) []time.Time {
	var out []time.Time
	for _, s := range slots {
		if s.ConnectorID == connectorID {
			out = append(out, s.Start)
		}
	}
	return out
}

func TestAvailableSlots(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	from := day.Add(10 * time.Hour)
	to := day.Add(14 * time.Hour)

	t.Run("bookings and holds carve out slots", func(t *testing.T) {
		f := newAvailabilityFixture(30*time.Minute,
			models.Connector{ID: 1, StationID: 5, ConnectorNumber: 1, ConnectorType: "CCS2", PowerKW: 150, Status: models.ConnectorAvailable},
			models.Connector{ID: 2, StationID: 5, ConnectorNumber: 2, Status: models.ConnectorMaintenance},
		)
		f.svc.nowFn = func() time.Time { return from }
		// Booking 11:00-12:00, hold 13:00-13:30.
		f.bookings.activeBooked = []models.Booking{{
			ConnectorID: 1, StartTS: day.Add(11 * time.Hour), EndTS: day.Add(12 * time.Hour),
		}}
		f.holds.windows[1] = []models.HoldWindow{{
			Start: day.Add(13 * time.Hour), End: day.Add(13*time.Hour + 30*time.Minute),
		}}

		slots, err := f.svc.AvailableSlots(context.Background(), 5, from, to, 60)
		require.NoError(t, err)

		assert.Equal(t, []time.Time{from, day.Add(12 * time.Hour)}, slotStarts(slots, 1))
		assert.Empty(t, slotStarts(slots, 2), "out-of-service connector must not offer slots")

		require.NotEmpty(t, slots)
		assert.Equal(t, "CCS2", slots[0].ConnectorType)
		assert.Equal(t, float64(150), slots[0].PowerKW)
		assert.Equal(t, 60, slots[0].DurationMinutes)
	})

	t.Run("occupied projection blocks only the lookahead window", func(t *testing.T) {
		f := newAvailabilityFixture(30*time.Minute,
			models.Connector{ID: 1, StationID: 5, ConnectorNumber: 1, Status: models.ConnectorAvailable},
		)
		f.svc.nowFn = func() time.Time { return from }
		f.state.set(models.ConnectorState{StationID: 5, ConnectorID: 1, Status: models.ConnectorOccupied})

		slots, err := f.svc.AvailableSlots(context.Background(), 5, from, to, 60)
		require.NoError(t, err)

		// The 10:00 slot starts inside the 30 minute lookahead; 11:00 onward
		// is beyond the horizon and stays free.
		assert.Equal(t,
			[]time.Time{day.Add(11 * time.Hour), day.Add(12 * time.Hour), day.Add(13 * time.Hour)},
			slotStarts(slots, 1),
		)
	})

	t.Run("cache hit skips recomputation", func(t *testing.T) {
		f := newAvailabilityFixture(30 * time.Minute)
		cached := []models.Slot{{ConnectorID: 1, Start: from, End: from.Add(time.Hour)}}
		f.cache.cached[redisstore.AvailabilityKey(5, from, to, 60)] = cached

		slots, err := f.svc.AvailableSlots(context.Background(), 5, from, to, 60)
		require.NoError(t, err)
		assert.Equal(t, cached, slots)
		assert.Zero(t, f.connectors.listCalls)
	})

	t.Run("result is written back to the cache", func(t *testing.T) {
		f := newAvailabilityFixture(30*time.Minute,
			models.Connector{ID: 1, StationID: 5, ConnectorNumber: 1, Status: models.ConnectorAvailable},
		)
		f.svc.nowFn = func() time.Time { return from }

		_, err := f.svc.AvailableSlots(context.Background(), 5, from, to, 60)
		require.NoError(t, err)
		assert.Contains(t, f.cache.sets, redisstore.AvailabilityKey(5, from, to, 60))
	})

	t.Run("invalid window", func(t *testing.T) {
		f := newAvailabilityFixture(30 * time.Minute)

		_, err := f.svc.AvailableSlots(context.Background(), 5, to, from, 60)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("custom slot size", func(t *testing.T) {
		f := newAvailabilityFixture(0,
			models.Connector{ID: 1, StationID: 5, ConnectorNumber: 1, Status: models.ConnectorAvailable},
		)
		f.svc.nowFn = func() time.Time { return from }

		slots, err := f.svc.AvailableSlots(context.Background(), 5, from, day.Add(11*time.Hour), 30)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, 30, slots[0].DurationMinutes)
		assert.Equal(t, from.Add(30*time.Minute), slots[1].Start)
	})
}
