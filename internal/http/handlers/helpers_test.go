package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	redisstore "chargebook/internal/redis"
	"chargebook/internal/repository"
	"chargebook/internal/service"
)

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{service.ErrInvalidWindow, http.StatusBadRequest, "INVALID_WINDOW"},
		{redisstore.ErrSlotAlreadyHeld, http.StatusConflict, "SLOT_ALREADY_HELD"},
		{redisstore.ErrOverlappingHold, http.StatusConflict, "OVERLAPPING_HOLD"},
		{service.ErrSlotUnavailable, http.StatusConflict, "SLOT_UNAVAILABLE"},
		{service.ErrConnectorUnavailable, http.StatusConflict, "CONNECTOR_UNAVAILABLE"},
		{service.ErrInvalidHold, http.StatusUnprocessableEntity, "INVALID_HOLD"},
		{service.ErrInvalidState, http.StatusUnprocessableEntity, "INVALID_STATE"},
		{service.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
		{repository.ErrConnectorNotFound, http.StatusNotFound, "NOT_FOUND"},
		{repository.ErrBookingNotFound, http.StatusNotFound, "NOT_FOUND"},
		{repository.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{service.ErrConnectorRefMissing, http.StatusBadRequest, "INVALID_PAYLOAD"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err)
		assert.Equal(t, tc.wantStatus, rec.Code, "error %v", tc.err)
		assert.Contains(t, rec.Body.String(), tc.wantCode, "error %v", tc.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestUserIDFromRequest(t *testing.T) {
	cases := []struct {
		header string
		wantID int64
		wantOK bool
	}{
		{"42", 42, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-1", 0, false},
		{"0", 0, false},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/bookings/me", nil)
		if tc.header != "" {
			req.Header.Set("X-User-ID", tc.header)
		}
		userID, ok := userIDFromRequest(req)
		assert.Equal(t, tc.wantOK, ok, "header %q", tc.header)
		assert.Equal(t, tc.wantID, userID, "header %q", tc.header)
	}
}
