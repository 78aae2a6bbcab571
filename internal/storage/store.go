package storage

import (
	"context"
	"errors"
	"time"

	"github.com/salonbook/salonbook/internal/model"
)

// ErrOverlap is returned when the database-level overlap constraint rejects a
// write that slipped past validation (e.g. concurrent requests on different
// instances). Callers re-run validation to produce a conflict with a
// suggested alternative.
var ErrOverlap = errors.New("appointment window overlaps an existing booking")

// AppointmentUpdate is the set of mutable booking fields applied on
// reschedule. All fields are written; callers pass the full desired state.
type AppointmentUpdate struct {
	StaffID   string
	ServiceID string
	StartTime time.Time
	EndTime   time.Time
}

// AppointmentStore is the persistence contract consumed by the booking
// validator (read path) and the booking service (write path). Writes that
// accompany a state change also record the corresponding outbox event
// atomically.
type AppointmentStore interface {
	GetByID(ctx context.Context, id string) (model.Appointment, error)

	// FindScheduledOverlaps returns the scheduled appointments of staffID
	// whose half-open windows intersect [start,end), excluding excludeID
	// when re-validating a reschedule. excludeID may be empty.
	FindScheduledOverlaps(ctx context.Context, staffID string, start, end time.Time, excludeID string) ([]model.Appointment, error)

	Insert(ctx context.Context, appt *model.Appointment) error
	Update(ctx context.Context, id string, upd AppointmentUpdate) (model.Appointment, error)
	SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)

	ListByClient(ctx context.Context, clientID string, limit int) ([]model.Appointment, error)
	ListByStaff(ctx context.Context, staffID string, limit int) ([]model.Appointment, error)
}
