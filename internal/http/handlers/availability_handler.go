package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/models"
	"chargebook/internal/service"
)

// AvailabilityHandler exposes the station slot grid.
type AvailabilityHandler struct {
	svc    *service.AvailabilityService
	logger *zap.Logger
}

// NewAvailabilityHandler returns handler.
func NewAvailabilityHandler(svc *service.AvailabilityService, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, logger: logger}
}

// Handle handles GET /stations/availability.
func (h *AvailabilityHandler) Handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stationID, err := strconv.ParseInt(query.Get("station_id"), 10, 64)
	if err != nil || stationID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "station_id is required")
		return
	}

	from, err := time.Parse(time.RFC3339, query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "from must be RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "to must be RFC3339")
		return
	}

	slotMinutes := 0
	if raw := query.Get("slot_minutes"); raw != "" {
		slotMinutes, err = strconv.Atoi(raw)
		if err != nil || slotMinutes < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "slot_minutes must be a positive integer")
			return
		}
	}

	slots, err := h.svc.AvailableSlots(r.Context(), stationID, from, to, slotMinutes)
	if err != nil {
		h.logger.Error("availability query failed", zap.Int64("station_id", stationID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"station_id": stationID, "slots": slots})
}
