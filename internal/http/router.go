package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	CreateHold          http.HandlerFunc
	ConfirmBooking      http.HandlerFunc
	CancelBooking       http.HandlerFunc
	MyBookings          http.HandlerFunc
	Availability        http.HandlerFunc
	VendorStatus        http.HandlerFunc
	VendorStatusBatch   http.HandlerFunc
	VendorBookingStatus http.HandlerFunc
	VendorSessionStart  http.HandlerFunc
	VendorSessionStop   http.HandlerFunc
	Health              http.HandlerFunc
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.CreateHold != nil {
		mux.Handle("/bookings/hold", method(http.MethodPost, routes.CreateHold))
	}
	if routes.ConfirmBooking != nil {
		mux.Handle("/bookings/confirm", method(http.MethodPost, routes.ConfirmBooking))
	}
	if routes.CancelBooking != nil {
		mux.Handle("/bookings/cancel", method(http.MethodPost, routes.CancelBooking))
	}
	if routes.MyBookings != nil {
		mux.Handle("/bookings/me", method(http.MethodGet, routes.MyBookings))
	}
	if routes.Availability != nil {
		mux.Handle("/stations/availability", method(http.MethodGet, routes.Availability))
	}
	if routes.VendorStatus != nil {
		mux.Handle("/internal/vendor/connector-status", method(http.MethodPost, routes.VendorStatus))
	}
	if routes.VendorStatusBatch != nil {
		mux.Handle("/internal/vendor/connector-status/batch", method(http.MethodPost, routes.VendorStatusBatch))
	}
	if routes.VendorBookingStatus != nil {
		mux.Handle("/internal/vendor/booking-status", method(http.MethodPost, routes.VendorBookingStatus))
	}
	if routes.VendorSessionStart != nil {
		mux.Handle("/internal/vendor/session-start", method(http.MethodPost, routes.VendorSessionStart))
	}
	if routes.VendorSessionStop != nil {
		mux.Handle("/internal/vendor/session-stop", method(http.MethodPost, routes.VendorSessionStop))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
