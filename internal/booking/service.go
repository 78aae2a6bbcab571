// Package booking is the composition root of the core: it runs the
// validator, commits through the appointment store, and on success fans the
// domain event out to both parties' live connections.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/salonbook/salonbook/internal/apperr"
	"github.com/salonbook/salonbook/internal/directory"
	"github.com/salonbook/salonbook/internal/metrics"
	"github.com/salonbook/salonbook/internal/model"
	"github.com/salonbook/salonbook/internal/realtime"
	"github.com/salonbook/salonbook/internal/storage"
)

// Notifier pushes a domain event to the live connections of the given user
// identities. Implementations must be non-blocking and best-effort.
type Notifier interface {
	Notify(kind realtime.EventKind, payload any, recipients ...string)
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	UserID string
	Role   string
}

type Service struct {
	store       storage.AppointmentStore
	validator   *Validator
	notifier    Notifier
	dir         directory.Directory
	logger      *slog.Logger
	staffLocks  keyedMutex
	maxAttempts int
}

func NewService(store storage.AppointmentStore, validator *Validator, notifier Notifier, dir directory.Directory, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		validator:   validator,
		notifier:    notifier,
		dir:         dir,
		logger:      logger,
		maxAttempts: 3,
	}
}

type CreateInput struct {
	ClientID  string
	StaffID   string
	ServiceID string
	StartTime time.Time
	EndTime   time.Time
}

type UpdateInput struct {
	ID        string
	ClientID  string // acting client, must own the appointment
	StaffID   string
	ServiceID string
	StartTime time.Time
	EndTime   time.Time
}

// Create validates and commits a new booking. The read-check-write sequence
// runs under a per-staff mutex so two concurrent requests for the same staff
// member cannot both pass validation; the database exclusion constraint backs
// this up across instances.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Appointment, error) {
	if err := s.checkReferences(ctx, in.StaffID, in.ServiceID); err != nil {
		return model.Appointment{}, err
	}

	unlock := s.staffLocks.lock(in.StaffID)
	defer unlock()

	var appt model.Appointment
	err := s.withRetry(ctx, func() error {
		if err := s.validator.Validate(ctx, in.StaffID, in.StartTime, in.EndTime, ""); err != nil {
			return err
		}
		appt = model.Appointment{
			ID:        uuid.NewString(),
			ClientID:  in.ClientID,
			StaffID:   in.StaffID,
			ServiceID: in.ServiceID,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			Status:    model.StatusScheduled,
		}
		return s.commitGuard(ctx, in.StaffID, in.StartTime, in.EndTime, "", s.store.Insert(ctx, &appt))
	})
	if err != nil {
		s.countRejection(err)
		return model.Appointment{}, err
	}

	metrics.BookingsAccepted.Inc()
	s.notifyParties(ctx, realtime.EventAppointmentCreated, appointmentPayload(appt), appt.ClientID, appt.StaffID)
	return appt, nil
}

// Update re-validates the new window excluding the appointment itself, then
// commits the reschedule. Skipping re-validation here would reintroduce
// double-booking.
func (s *Service) Update(ctx context.Context, in UpdateInput) (model.Appointment, error) {
	current, err := s.store.GetByID(ctx, in.ID)
	if err != nil {
		return model.Appointment{}, err
	}
	if current.ClientID != in.ClientID {
		return model.Appointment{}, apperr.Forbidden("appointment belongs to another client")
	}
	if current.Status != model.StatusScheduled {
		return model.Appointment{}, apperr.Validation("only scheduled appointments can be rescheduled")
	}
	if err := s.checkReferences(ctx, in.StaffID, in.ServiceID); err != nil {
		return model.Appointment{}, err
	}

	unlock := s.staffLocks.lock(in.StaffID)
	defer unlock()

	var updated model.Appointment
	err = s.withRetry(ctx, func() error {
		if err := s.validator.Validate(ctx, in.StaffID, in.StartTime, in.EndTime, in.ID); err != nil {
			return err
		}
		var uerr error
		updated, uerr = s.store.Update(ctx, in.ID, storage.AppointmentUpdate{
			StaffID:   in.StaffID,
			ServiceID: in.ServiceID,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
		})
		return s.commitGuard(ctx, in.StaffID, in.StartTime, in.EndTime, in.ID, uerr)
	})
	if err != nil {
		s.countRejection(err)
		return model.Appointment{}, err
	}

	s.notifyParties(ctx, realtime.EventAppointmentUpdated, appointmentPayload(updated), updated.ClientID, updated.StaffID)
	return updated, nil
}

// Cancel marks the appointment cancelled. Cancelling an already-cancelled
// appointment is an idempotent no-op and never re-notifies. Cancellation is
// a status mutation; rows are never deleted.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor) error {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeParty(ctx, actor, appt); err != nil {
		return err
	}
	if appt.Status == model.StatusCancelled {
		return nil
	}
	if !appt.Status.CanTransitionTo(model.StatusCancelled) {
		return apperr.Validation("a %s appointment cannot be cancelled", appt.Status)
	}

	cancelled, err := s.store.SetStatus(ctx, id, model.StatusCancelled)
	if err != nil {
		return err
	}

	s.notifyParties(ctx, realtime.EventAppointmentCancelled, cancelledPayload{
		AppointmentID: cancelled.ID,
		ClientID:      cancelled.ClientID,
		StaffID:       cancelled.StaffID,
	}, cancelled.ClientID, cancelled.StaffID)
	return nil
}

// ListForActor returns the actor's own appointments: a client sees their
// bookings, a staff member their assigned ones.
func (s *Service) ListForActor(ctx context.Context, actor Actor, limit int) ([]model.Appointment, error) {
	switch actor.Role {
	case "client":
		clientID, err := s.dir.ResolveClientID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return s.store.ListByClient(ctx, clientID, limit)
	case "staff":
		staffID, err := s.dir.ResolveStaffID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return s.store.ListByStaff(ctx, staffID, limit)
	default:
		return nil, apperr.Forbidden("unknown role %q", actor.Role)
	}
}

func (s *Service) checkReferences(ctx context.Context, staffID, serviceID string) error {
	if _, err := s.dir.UserIDForStaff(ctx, staffID); err != nil {
		return err
	}
	ok, err := s.dir.ServiceExists(ctx, serviceID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("service", serviceID)
	}
	return nil
}

// commitGuard turns a storage overlap rejection into a proper conflict by
// re-running validation against the now-visible competing booking. The
// constraint only fires when a competing request committed on another
// instance, outside this one's staff lock.
func (s *Service) commitGuard(ctx context.Context, staffID string, start, end time.Time, excludeID string, err error) error {
	if err == nil || !errors.Is(err, storage.ErrOverlap) {
		return err
	}
	if verr := s.validator.Validate(ctx, staffID, start, end, excludeID); verr != nil {
		return verr
	}
	return apperr.Persistence("overlap constraint", true, err)
}

func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperr.IsRetryable(err) {
			return err
		}
		s.logger.Warn("retrying booking commit", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return apperr.Persistence("booking commit", false, ctx.Err())
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return err
}

func (s *Service) authorizeParty(ctx context.Context, actor Actor, appt model.Appointment) error {
	switch actor.Role {
	case "client":
		clientID, err := s.dir.ResolveClientID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if clientID != appt.ClientID {
			return apperr.Forbidden("appointment belongs to another client")
		}
	case "staff":
		staffID, err := s.dir.ResolveStaffID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if staffID != appt.StaffID {
			return apperr.Forbidden("appointment is assigned to another staff member")
		}
	default:
		return apperr.Forbidden("unknown role %q", actor.Role)
	}
	return nil
}

// notifyParties resolves both parties' user identities and pushes the event
// to their live connections. The booking has already committed; lookup or
// delivery failures are logged and never surfaced to the caller.
func (s *Service) notifyParties(ctx context.Context, kind realtime.EventKind, payload any, clientID, staffID string) {
	var recipients []string
	if userID, err := s.dir.UserIDForClient(ctx, clientID); err == nil {
		recipients = append(recipients, userID)
	} else {
		s.logger.Warn("client recipient lookup failed", "client_id", clientID, "err", err)
	}
	if userID, err := s.dir.UserIDForStaff(ctx, staffID); err == nil {
		recipients = append(recipients, userID)
	} else {
		s.logger.Warn("staff recipient lookup failed", "staff_id", staffID, "err", err)
	}
	s.notifier.Notify(kind, payload, recipients...)
}

func (s *Service) countRejection(err error) {
	if _, ok := apperr.AsConflict(err); ok {
		metrics.BookingsRejected.WithLabelValues("conflict").Inc()
		return
	}
	if apperr.IsValidation(err) {
		metrics.BookingsRejected.WithLabelValues("validation").Inc()
	}
}

type apptPayload struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

type cancelledPayload struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
	StaffID       string `json:"staff_id"`
}

func appointmentPayload(appt model.Appointment) apptPayload {
	return apptPayload{
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
		Status:        string(appt.Status),
	}
}

// keyedMutex serializes the validate-and-commit critical section per staff
// member. Entries are never removed; the set of staff ids is small and
// stable.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
