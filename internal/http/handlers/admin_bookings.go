package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/karibuhq/karibu-ai-platform/internal/bookings"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

const defaultBookingsPageSize = 50

// AdminBookingsHandler exposes the operator booking endpoints: listing
// recent bookings and driving the status lifecycle. Customers never touch
// these routes; status changes happen here, not over WhatsApp.
type AdminBookingsHandler struct {
	svc    *bookings.Service
	logger *logging.Logger
}

// NewAdminBookingsHandler creates the handler.
func NewAdminBookingsHandler(svc *bookings.Service, logger *logging.Logger) *AdminBookingsHandler {
	if svc == nil {
		panic("handlers: bookings service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingsHandler{svc: svc, logger: logger}
}

// BookingsListResponse is the list payload.
type BookingsListResponse struct {
	OrgID    string             `json:"org_id"`
	Bookings []bookings.Booking `json:"bookings"`
	Count    int                `json:"count"`
}

// ListBookings returns recent bookings for an org, newest first.
// GET /admin/orgs/{orgID}/bookings?limit=50
func (h *AdminBookingsHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		respondError(w, http.StatusBadRequest, "missing orgID")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = defaultBookingsPageSize
	}

	list, err := h.svc.ListForOrg(r.Context(), orgID, limit)
	if err != nil {
		h.logger.Error("list bookings failed", "org_id", orgID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if list == nil {
		list = []bookings.Booking{}
	}

	respondJSON(w, http.StatusOK, BookingsListResponse{OrgID: orgID, Bookings: list, Count: len(list)})
}

// GetBooking returns a single booking.
// GET /admin/orgs/{orgID}/bookings/{bookingID}
func (h *AdminBookingsHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	bookingID := chi.URLParam(r, "bookingID")
	if orgID == "" || bookingID == "" {
		respondError(w, http.StatusBadRequest, "missing orgID or bookingID")
		return
	}

	b, err := h.svc.GetByID(r.Context(), orgID, bookingID)
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			respondError(w, http.StatusNotFound, "booking not found")
			return
		}
		h.logger.Error("get booking failed", "org_id", orgID, "booking_id", bookingID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}

	respondJSON(w, http.StatusOK, b)
}

type statusChangeRequest struct {
	Status string `json:"status"`
}

// UpdateBookingStatus applies an operator status transition.
// POST /admin/orgs/{orgID}/bookings/{bookingID}/status
//
// Allowed: pending→confirmed, pending→cancelled, confirmed→completed.
func (h *AdminBookingsHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	bookingID := chi.URLParam(r, "bookingID")
	if orgID == "" || bookingID == "" {
		respondError(w, http.StatusBadRequest, "missing orgID or bookingID")
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case bookings.StatusConfirmed, bookings.StatusCancelled, bookings.StatusCompleted:
	default:
		respondError(w, http.StatusBadRequest, "unknown status")
		return
	}

	b, err := h.svc.SetStatus(r.Context(), orgID, bookingID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrNotFound):
			respondError(w, http.StatusNotFound, "booking not found")
		case errors.Is(err, bookings.ErrInvalidTransition):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("status change failed", "org_id", orgID, "booking_id", bookingID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to update booking")
		}
		return
	}

	respondJSON(w, http.StatusOK, b)
}
