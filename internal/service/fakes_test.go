package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chargebook/internal/models"
	"chargebook/internal/repository"
)

type closeCall struct {
	bookingID   int64
	connectorID int64
	from        []models.BookingStatus
	to          models.BookingStatus
}

type fakeBookings struct {
	mu            sync.Mutex
	byID          map[int64]*models.Booking
	nextID        int64
	overlapResult bool
	overlapErr    error
	confirmErr    error
	candidates    []models.Booking
	activeBooked  []models.Booking
	closeCalls    []closeCall
	syncUpdates   map[int64]string
	activated     []int64
	overlapCalls  int
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		byID:        make(map[int64]*models.Booking),
		syncUpdates: make(map[int64]string),
	}
}

func (f *fakeBookings) put(b models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := b
	f.byID[b.ID] = &copied
	if b.ID > f.nextID {
		f.nextID = b.ID
	}
}

func (f *fakeBookings) OverlapExists(ctx context.Context, connectorID int64, start, end time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlapCalls++
	return f.overlapResult, f.overlapErr
}

func (f *fakeBookings) Confirm(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.nextID++
	b.ID = f.nextID
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	copied := *b
	f.byID[b.ID] = &copied
	return nil
}

func (f *fakeBookings) Close(ctx context.Context, bookingID, connectorID int64, from []models.BookingStatus, to models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls = append(f.closeCalls, closeCall{bookingID, connectorID, from, to})
	b, ok := f.byID[bookingID]
	if !ok {
		return repository.ErrBookingNotFound
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			return nil
		}
	}
	return repository.ErrBookingNotFound
}

func (f *fakeBookings) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookings) GetByVendorBookingID(ctx context.Context, vendorBookingID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byID {
		if b.VendorBookingID == vendorBookingID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (f *fakeBookings) UpdateVendorSyncStatus(ctx context.Context, id int64, syncStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.VendorSyncStatus = syncStatus
	f.syncUpdates[id] = syncStatus
	return nil
}

func (f *fakeBookings) MarkActive(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok || b.Status != models.BookingConfirmed {
		return repository.ErrBookingNotFound
	}
	b.Status = models.BookingActive
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeBookings) ListByUser(ctx context.Context, userID int64, status models.BookingStatus, limit, offset int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.byID {
		if b.UserID != userID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBookings) ListActiveByStation(ctx context.Context, stationID int64, from, to time.Time) ([]models.Booking, error) {
	return f.activeBooked, nil
}

func (f *fakeBookings) NoShowCandidates(ctx context.Context, graceCutoff, startedAfter time.Time) ([]models.Booking, error) {
	return f.candidates, nil
}

type statusUpdate struct {
	connectorID int64
	status      models.ConnectorStatus
	bookingID   *int64
}

type fakeConnectors struct {
	mu        sync.Mutex
	byID      map[int64]*models.Connector
	updates   []statusUpdate
	updateErr error
	listCalls int
}

func newFakeConnectors(connectors ...models.Connector) *fakeConnectors {
	f := &fakeConnectors{byID: make(map[int64]*models.Connector)}
	for _, c := range connectors {
		copied := c
		f.byID[c.ID] = &copied
	}
	return f
}

func (f *fakeConnectors) GetByID(ctx context.Context, id int64) (*models.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrConnectorNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeConnectors) GetByVendorID(ctx context.Context, vendorConnectorID string) (*models.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.VendorConnectorID == vendorConnectorID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, repository.ErrConnectorNotFound
}

func (f *fakeConnectors) ListByStation(ctx context.Context, stationID int64) ([]models.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []models.Connector
	for _, c := range f.byID {
		if c.StationID == stationID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConnectors) UpdateStatus(ctx context.Context, connectorID int64, status models.ConnectorStatus, bookingID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	c, ok := f.byID[connectorID]
	if !ok {
		return repository.ErrConnectorNotFound
	}
	c.Status = status
	c.CurrentBookingID = bookingID
	f.updates = append(f.updates, statusUpdate{connectorID, status, bookingID})
	return nil
}

type fakeSessions struct {
	mu     sync.Mutex
	byID   map[int64]*models.ChargingSession
	nextID int64
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: make(map[int64]*models.ChargingSession)}
}

func (f *fakeSessions) put(s models.ChargingSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := s
	f.byID[s.ID] = &copied
	if s.ID > f.nextID {
		f.nextID = s.ID
	}
}

func (f *fakeSessions) Create(ctx context.Context, s *models.ChargingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	copied := *s
	f.byID[s.ID] = &copied
	return nil
}

func (f *fakeSessions) GetByID(ctx context.Context, id int64) (*models.ChargingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessions) GetByVendorSessionID(ctx context.Context, vendorSessionID string) (*models.ChargingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.VendorSessionID == vendorSessionID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (f *fakeSessions) Finish(ctx context.Context, id int64, endedAt time.Time, endMeter, energyKWh, costAmount float64, durationMinutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.EndedAt = &endedAt
	s.EndMeterReading = endMeter
	s.EnergyKWh = energyKWh
	s.CostAmount = costAmount
	s.DurationMinutes = durationMinutes
	s.Status = models.SessionCompleted
	return nil
}

type fakeHolds struct {
	mu          sync.Mutex
	createErr   error
	createCalls int
	lastCreated models.Hold
	verifyHold  *models.Hold
	verifyErr   error
	releaseErr  error
	released    []string
	windows     map[int64][]models.HoldWindow
	ttlSeconds  int
}

func newFakeHolds() *fakeHolds {
	return &fakeHolds{windows: make(map[int64][]models.HoldWindow), ttlSeconds: 600}
}

func (f *fakeHolds) Create(ctx context.Context, hold models.Hold) (models.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return models.Hold{}, f.createErr
	}
	hold.Token = "test-token"
	hold.CreatedAt = time.Now().UTC()
	hold.TTLSeconds = f.ttlSeconds
	f.lastCreated = hold
	return hold, nil
}

func (f *fakeHolds) Release(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, token)
	return f.releaseErr
}

func (f *fakeHolds) Verify(ctx context.Context, token string) (*models.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	copied := *f.verifyHold
	return &copied, nil
}

func (f *fakeHolds) ConnectorHolds(ctx context.Context, connectorID int64) ([]models.HoldWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[connectorID], nil
}

type fakeState struct {
	mu      sync.Mutex
	updates []models.ConnectorState
	batches [][]models.ConnectorState
	states  map[string]*models.ConnectorState
	getErr  error
	setErr  error
}

func newFakeState() *fakeState {
	return &fakeState{states: make(map[string]*models.ConnectorState)}
}

func stateKey(stationID, connectorID int64) string {
	return fmt.Sprintf("%d/%d", stationID, connectorID)
}

func (f *fakeState) set(state models.ConnectorState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := state
	f.states[stateKey(state.StationID, state.ConnectorID)] = &copied
}

func (f *fakeState) Update(ctx context.Context, state models.ConnectorState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.updates = append(f.updates, state)
	copied := state
	f.states[stateKey(state.StationID, state.ConnectorID)] = &copied
	return nil
}

func (f *fakeState) Get(ctx context.Context, stationID, connectorID int64) (*models.ConnectorState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.states[stateKey(stationID, connectorID)]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeState) StationConnectors(ctx context.Context, stationID int64) ([]models.ConnectorState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ConnectorState
	for _, s := range f.states {
		if s.StationID == stationID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeState) BatchUpdate(ctx context.Context, states []models.ConnectorState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, states)
	for _, state := range states {
		copied := state
		f.states[stateKey(state.StationID, state.ConnectorID)] = &copied
	}
	return nil
}

type fakeAvailability struct {
	mu          sync.Mutex
	cached      map[string][]models.Slot
	sets        map[string][]models.Slot
	invalidated []int64
}

func newFakeAvailability() *fakeAvailability {
	return &fakeAvailability{
		cached: make(map[string][]models.Slot),
		sets:   make(map[string][]models.Slot),
	}
}

func (f *fakeAvailability) Get(ctx context.Context, key string) ([]models.Slot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, ok := f.cached[key]
	return slots, ok, nil
}

func (f *fakeAvailability) Set(ctx context.Context, key string, slots []models.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[key] = slots
	return nil
}

func (f *fakeAvailability) InvalidateStation(ctx context.Context, stationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, stationID)
	return nil
}

type publishedEvent struct {
	eventType string
	stationID int64
}

type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{}
}

func (f *fakeEvents) record(eventType string, stationID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType, stationID})
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.eventType
	}
	return out
}

func (f *fakeEvents) ConnectorStatusChanged(ctx context.Context, stationID, connectorID int64, status models.ConnectorStatus, bookingID *int64) {
	f.record("connector.status_changed", stationID)
}

func (f *fakeEvents) HoldCreated(ctx context.Context, stationID, connectorID int64, start, end time.Time, expiresInSeconds int) {
	f.record("slot.hold_created", stationID)
}

func (f *fakeEvents) BookingConfirmed(ctx context.Context, b *models.Booking) {
	f.record("booking.confirmed", b.StationID)
}

func (f *fakeEvents) SessionStarted(ctx context.Context, s *models.ChargingSession) {
	f.record("session.started", s.StationID)
}

func (f *fakeEvents) SessionEnded(ctx context.Context, s *models.ChargingSession) {
	f.record("session.ended", s.StationID)
}

func (f *fakeEvents) StationUpdated(ctx context.Context, stationID, connectorID int64, status models.ConnectorStatus, reason string) {
	f.record("station.updated", stationID)
}
