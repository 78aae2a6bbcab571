package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/salonbook/salonbook/internal/apperr"
	"github.com/salonbook/salonbook/internal/booking"
	"github.com/salonbook/salonbook/internal/directory"
	"github.com/salonbook/salonbook/internal/model"
	"github.com/salonbook/salonbook/libs/auth"
)

const defaultListLimit = 100

// BookingService is the slice of the booking core the REST surface consumes.
type BookingService interface {
	Create(ctx context.Context, in booking.CreateInput) (model.Appointment, error)
	Update(ctx context.Context, in booking.UpdateInput) (model.Appointment, error)
	Cancel(ctx context.Context, id string, actor booking.Actor) error
	ListForActor(ctx context.Context, actor booking.Actor, limit int) ([]model.Appointment, error)
}

type AppointmentHandler struct {
	svc    BookingService
	dir    directory.Directory
	logger *slog.Logger
}

func NewAppointmentHandler(svc BookingService, dir directory.Directory, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, dir: dir, logger: logger}
}

// Register wires the appointment routes onto the mux. All routes sit behind
// RequireAuth.
func (h *AppointmentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /appointments", h.Create)
	mux.HandleFunc("GET /appointments", h.List)
	mux.HandleFunc("PUT /appointments/{id}", h.Update)
	mux.HandleFunc("PATCH /appointments/{id}/cancel", h.Cancel)
}

type appointmentRequest struct {
	StaffID   string `json:"staff_id"`
	ServiceID string `json:"service_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
}

func toResponse(appt model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
		Status:        string(appt.Status),
	}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, h.logger, errUnauthorized)
		return
	}

	req, start, end, err := decodeAppointmentRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	clientID, err := h.clientID(r.Context(), claims)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	appt, err := h.svc.Create(r.Context(), booking.CreateInput{
		ClientID:  clientID,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, h.logger, errUnauthorized)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, h.logger, apperr.Validation("appointment id required"))
		return
	}

	req, start, end, err := decodeAppointmentRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	clientID, err := h.clientID(r.Context(), claims)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	appt, err := h.svc.Update(r.Context(), booking.UpdateInput{
		ID:        id,
		ClientID:  clientID,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, h.logger, errUnauthorized)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, h.logger, apperr.Validation("appointment id required"))
		return
	}

	actor := booking.Actor{UserID: claims.Subject, Role: claims.Role}
	if err := h.svc.Cancel(r.Context(), id, actor); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		writeError(w, h.logger, errUnauthorized)
		return
	}

	actor := booking.Actor{UserID: claims.Subject, Role: claims.Role}
	appts, err := h.svc.ListForActor(r.Context(), actor, defaultListLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		out = append(out, toResponse(appt))
	}
	writeJSON(w, http.StatusOK, out)
}

// clientID resolves the acting client. Only clients create and reschedule
// bookings; staff manage their calendar through cancel and list.
func (h *AppointmentHandler) clientID(ctx context.Context, claims *auth.Claims) (string, error) {
	if claims.Role != auth.RoleClient {
		return "", apperr.Forbidden("only clients can book appointments")
	}
	return h.dir.ResolveClientID(ctx, claims.Subject)
}

func decodeAppointmentRequest(r *http.Request) (appointmentRequest, time.Time, time.Time, error) {
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, time.Time{}, time.Time{}, apperr.Validation("invalid json body")
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.StaffID == "" || req.ServiceID == "" {
		return req, time.Time{}, time.Time{}, apperr.Validation("staff_id and service_id are required")
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return req, time.Time{}, time.Time{}, apperr.Validation("invalid start_time")
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return req, time.Time{}, time.Time{}, apperr.Validation("invalid end_time")
	}
	return req, start, end, nil
}
