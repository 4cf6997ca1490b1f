package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/models"
	"chargebook/internal/service"
)

// BookingHandlers exposes the hold/confirm/cancel protocol.
type BookingHandlers struct {
	svc    *service.BookingService
	logger *zap.Logger
}

// NewBookingHandlers returns handler set.
func NewBookingHandlers(svc *service.BookingService, logger *zap.Logger) *BookingHandlers {
	return &BookingHandlers{svc: svc, logger: logger}
}

type holdRequest struct {
	StationID   int64     `json:"station_id"`
	ConnectorID int64     `json:"connector_id"`
	StartTS     time.Time `json:"start_ts"`
	EndTS       time.Time `json:"end_ts"`
}

// HandleCreateHold handles POST /bookings/hold.
func (h *BookingHandlers) HandleCreateHold(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
		return
	}

	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}
	if req.StationID <= 0 || req.ConnectorID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "station_id and connector_id are required")
		return
	}

	result, err := h.svc.CreateHold(r.Context(), service.HoldRequest{
		StationID:   req.StationID,
		ConnectorID: req.ConnectorID,
		UserID:      userID,
		StartTS:     req.StartTS,
		EndTS:       req.EndTS,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type confirmRequest struct {
	HoldToken string `json:"hold_token"`
	PaymentID string `json:"payment_id"`
}

// HandleConfirmBooking handles POST /bookings/confirm.
func (h *BookingHandlers) HandleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}
	if req.HoldToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "hold_token is required")
		return
	}

	booking, err := h.svc.ConfirmBooking(r.Context(), req.HoldToken, userID, req.PaymentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

type cancelRequest struct {
	BookingID int64 `json:"booking_id"`
}

// HandleCancelBooking handles POST /bookings/cancel.
func (h *BookingHandlers) HandleCancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}
	if req.BookingID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "booking_id is required")
		return
	}

	booking, err := h.svc.CancelBooking(r.Context(), req.BookingID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// HandleMyBookings handles GET /bookings/me.
func (h *BookingHandlers) HandleMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	status := models.BookingStatus(query.Get("status"))

	bookings, err := h.svc.UserBookings(r.Context(), userID, status, limit, offset)
	if err != nil {
		h.logger.Error("list bookings failed", zap.Int64("user_id", userID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": bookings})
}
