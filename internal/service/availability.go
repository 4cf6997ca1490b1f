package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/models"
	redisstore "chargebook/internal/redis"
)

const defaultSlotDuration = 60 * time.Minute

// AvailabilityService computes free time slots for a station by merging three
// signals: durable bookings, live holds, and the cached connector projection.
type AvailabilityService struct {
	bookings          BookingRepository
	connectors        ConnectorRepository
	holds             HoldStore
	state             StateStore
	cache             AvailabilityCache
	slotDuration      time.Duration
	occupiedLookahead time.Duration
	logger            *zap.Logger
	nowFn             func() time.Time
}

// NewAvailabilityService builds the calculator. occupiedLookahead is the
// window during which a currently OCCUPIED/RESERVED connector blocks
// near-term slots even without a committed booking row.
func NewAvailabilityService(
	bookings BookingRepository,
	connectors ConnectorRepository,
	holds HoldStore,
	state StateStore,
	cache AvailabilityCache,
	slotDuration time.Duration,
	occupiedLookahead time.Duration,
	logger *zap.Logger,
) *AvailabilityService {
	if slotDuration <= 0 {
		slotDuration = defaultSlotDuration
	}
	return &AvailabilityService{
		bookings:          bookings,
		connectors:        connectors,
		holds:             holds,
		state:             state,
		cache:             cache,
		slotDuration:      slotDuration,
		occupiedLookahead: occupiedLookahead,
		logger:            logger,
		nowFn:             func() time.Time { return time.Now().UTC() },
	}
}

// AvailableSlots returns the free slots at a station over [from, to),
// discretized into slotMinutes-sized slots.
func (s *AvailabilityService) AvailableSlots(ctx context.Context, stationID int64, from, to time.Time, slotMinutes int) ([]models.Slot, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return nil, ErrInvalidWindow
	}
	slotSize := s.slotDuration
	if slotMinutes > 0 {
		slotSize = time.Duration(slotMinutes) * time.Minute
	}
	from = from.UTC()
	to = to.UTC()

	cacheKey := redisstore.AvailabilityKey(stationID, from, to, int(slotSize.Minutes()))
	if cached, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.logger.Warn("availability cache read failed", zap.Int64("station_id", stationID), zap.Error(err))
	}

	connectors, err := s.connectors.ListByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.bookings.ListActiveByStation(ctx, stationID, from, to)
	if err != nil {
		return nil, err
	}
	bookedByConnector := make(map[int64][]models.Booking)
	for _, b := range bookings {
		bookedByConnector[b.ConnectorID] = append(bookedByConnector[b.ConnectorID], b)
	}

	now := s.nowFn()
	slots := make([]models.Slot, 0)
	for _, connector := range connectors {
		if connector.OutOfService() {
			continue
		}

		holdWindows, err := s.holds.ConnectorHolds(ctx, connector.ID)
		if err != nil {
			return nil, err
		}

		projection, err := s.state.Get(ctx, stationID, connector.ID)
		if err != nil {
			// Projection is an optimization; compute from durable data alone.
			s.logger.Warn("connector projection read failed", zap.Int64("connector_id", connector.ID), zap.Error(err))
			projection = nil
		}

		for slotStart := from; slotStart.Add(slotSize).Compare(to) <= 0; slotStart = slotStart.Add(slotSize) {
			slotEnd := slotStart.Add(slotSize)
			if s.slotBlocked(slotStart, slotEnd, now, bookedByConnector[connector.ID], holdWindows, projection) {
				continue
			}
			slots = append(slots, models.Slot{
				ConnectorID:     connector.ID,
				ConnectorNumber: connector.ConnectorNumber,
				ConnectorType:   connector.ConnectorType,
				PowerKW:         connector.PowerKW,
				Start:           slotStart,
				End:             slotEnd,
				DurationMinutes: int(slotSize.Minutes()),
			})
		}
	}

	if err := s.cache.Set(ctx, cacheKey, slots); err != nil {
		s.logger.Warn("availability cache write failed", zap.Int64("station_id", stationID), zap.Error(err))
	}

	return slots, nil
}

func (s *AvailabilityService) slotBlocked(slotStart, slotEnd, now time.Time, bookings []models.Booking, holds []models.HoldWindow, projection *models.ConnectorState) bool {
	for _, b := range bookings {
		if overlaps(slotStart, slotEnd, b.StartTS, b.EndTS) {
			return true
		}
	}
	for _, h := range holds {
		if overlaps(slotStart, slotEnd, h.Start, h.End) {
			return true
		}
	}
	// A connector that is occupied right now blocks slots starting before the
	// lookahead horizon: real-world occupancy can precede any committed row.
	if projection != nil && (projection.Status == models.ConnectorOccupied || projection.Status == models.ConnectorReserved) {
		if slotStart.Before(now.Add(s.occupiedLookahead)) && slotEnd.After(now) {
			return true
		}
	}
	return false
}

// overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
