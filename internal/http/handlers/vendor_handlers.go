package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"chargebook/internal/service"
)

// VendorHandlers accepts normalized vendor webhook callbacks.
type VendorHandlers struct {
	adapter *service.VendorAdapter
	logger  *zap.Logger
}

// NewVendorHandlers returns handler set.
func NewVendorHandlers(adapter *service.VendorAdapter, logger *zap.Logger) *VendorHandlers {
	return &VendorHandlers{adapter: adapter, logger: logger}
}

// HandleConnectorStatus handles POST /internal/vendor/connector-status.
func (h *VendorHandlers) HandleConnectorStatus(w http.ResponseWriter, r *http.Request) {
	var upd service.ConnectorStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}

	connector, err := h.adapter.ProcessConnectorStatusUpdate(r.Context(), upd)
	if err != nil {
		h.logger.Error("connector status update failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"connector_id": connector.ID,
		"mapped":       connector.Status,
	})
}

// HandleConnectorStatusBatch handles POST /internal/vendor/connector-status/batch.
func (h *VendorHandlers) HandleConnectorStatusBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates []service.ConnectorStatusUpdate `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}
	if len(req.Updates) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "updates are required")
		return
	}

	if err := h.adapter.ProcessConnectorStatusBatch(r.Context(), req.Updates); err != nil {
		h.logger.Error("connector status batch failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// HandleBookingNotification handles POST /internal/vendor/booking-status.
func (h *VendorHandlers) HandleBookingNotification(w http.ResponseWriter, r *http.Request) {
	var n service.VendorBookingNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}
	if n.VendorBookingID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "vendor_booking_id is required")
		return
	}

	if err := h.adapter.ProcessVendorBookingNotification(r.Context(), n); err != nil {
		h.logger.Error("vendor booking notification failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// HandleSessionStart handles POST /internal/vendor/session-start.
func (h *VendorHandlers) HandleSessionStart(w http.ResponseWriter, r *http.Request) {
	var in service.SessionStartInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}
	if in.VendorSessionID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "vendor_session_id is required")
		return
	}

	session, err := h.adapter.ProcessSessionStart(r.Context(), in)
	if err != nil {
		h.logger.Error("session start failed", zap.String("vendor_session_id", in.VendorSessionID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "ok", "session_id": session.ID})
}

// HandleSessionEnd handles POST /internal/vendor/session-stop.
func (h *VendorHandlers) HandleSessionEnd(w http.ResponseWriter, r *http.Request) {
	var in service.SessionEndInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json")
		return
	}
	if in.VendorSessionID == "" && in.SessionID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "vendor_session_id or session_id is required")
		return
	}

	session, err := h.adapter.ProcessSessionEnd(r.Context(), in)
	if err != nil {
		h.logger.Error("session end failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "ok",
		"session_id": session.ID,
		"energy_kwh": session.EnergyKWh,
	})
}
