package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	redisstore "chargebook/internal/redis"
	"chargebook/internal/repository"
	"chargebook/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}

// writeServiceError maps domain errors onto the HTTP error taxonomy:
// conflicts are retryable with a different window, not-found and ownership
// failures are the caller's problem, anything else is a backend failure.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "INVALID_WINDOW", "invalid time window")
	case errors.Is(err, redisstore.ErrSlotAlreadyHeld):
		writeError(w, http.StatusConflict, "SLOT_ALREADY_HELD", "an identical hold already exists")
	case errors.Is(err, redisstore.ErrOverlappingHold):
		writeError(w, http.StatusConflict, "OVERLAPPING_HOLD", "an overlapping hold already exists")
	case errors.Is(err, service.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "SLOT_UNAVAILABLE", "the slot is no longer available")
	case errors.Is(err, service.ErrConnectorUnavailable):
		writeError(w, http.StatusConflict, "CONNECTOR_UNAVAILABLE", "the connector is out of service")
	case errors.Is(err, service.ErrInvalidHold):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_HOLD", "the hold is unknown, expired or not yours")
	case errors.Is(err, service.ErrInvalidState):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_STATE", "the booking cannot be cancelled in its current state")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "UNAUTHORIZED", "the booking belongs to another user")
	case errors.Is(err, repository.ErrConnectorNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "connector not found")
	case errors.Is(err, repository.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "booking not found")
	case errors.Is(err, repository.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "charging session not found")
	case errors.Is(err, service.ErrConnectorRefMissing):
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "connector reference missing")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// userIDFromRequest reads the identity attached by the upstream gateway.
func userIDFromRequest(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}
