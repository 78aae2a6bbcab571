package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/salonbook/salonbook/internal/apperr"
	"github.com/salonbook/salonbook/internal/model"
	"github.com/salonbook/salonbook/internal/outbox"
	"github.com/salonbook/salonbook/libs/db"
)

const apptColumns = `id, client_id, staff_id, service_id, start_time, end_time, status, cancelled_at, created_at`

// AppointmentRepository is the Postgres-backed AppointmentStore. State
// changes write their domain event into the outbox table inside the same
// transaction, so an event is published iff the booking committed.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

var _ AppointmentStore = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, apperr.NotFound("appointment", id)
		}
		return model.Appointment{}, mapPgError("get appointment", err)
	}
	return appt, nil
}

func (r *AppointmentRepository) FindScheduledOverlaps(ctx context.Context, staffID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND status = 'scheduled'
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id <> $4)
		ORDER BY start_time ASC
	`, staffID, start, end, excludeID)
	if err != nil {
		return nil, mapPgError("find overlaps", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, mapPgError("find overlaps", err)
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, mapPgError("find overlaps", rows.Err())
	}
	return appts, nil
}

func (r *AppointmentRepository) Insert(ctx context.Context, appt *model.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapPgError("begin insert", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, client_id, staff_id, service_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, appt.ID, appt.ClientID, appt.StaffID, appt.ServiceID, appt.StartTime, appt.EndTime, appt.Status).Scan(&appt.CreatedAt)
	if err != nil {
		if isOverlapViolation(err) {
			return ErrOverlap
		}
		return mapPgError("insert appointment", err)
	}

	if err := r.insertEvent(ctx, tx, "booking.appointment.booked.v1", *appt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError("commit insert", err)
	}
	return nil
}

func (r *AppointmentRepository) Update(ctx context.Context, id string, upd AppointmentUpdate) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, mapPgError("begin update", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET staff_id = $2,
			service_id = $3,
			start_time = $4,
			end_time = $5
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, upd.StaffID, upd.ServiceID, upd.StartTime, upd.EndTime)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, apperr.NotFound("appointment", id)
		}
		if isOverlapViolation(err) {
			return model.Appointment{}, ErrOverlap
		}
		return model.Appointment{}, mapPgError("update appointment", err)
	}

	if err := r.insertEvent(ctx, tx, "booking.appointment.updated.v1", appt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, mapPgError("commit update", err)
	}
	return appt, nil
}

func (r *AppointmentRepository) SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, mapPgError("begin status change", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, status)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, apperr.NotFound("appointment", id)
		}
		return model.Appointment{}, mapPgError("set status", err)
	}

	if status == model.StatusCancelled {
		if err := r.insertEvent(ctx, tx, "booking.appointment.cancelled.v1", appt); err != nil {
			return model.Appointment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, mapPgError("commit status change", err)
	}
	return appt, nil
}

func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, "client_id", clientID, limit)
}

func (r *AppointmentRepository) ListByStaff(ctx context.Context, staffID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, "staff_id", staffID, limit)
}

func (r *AppointmentRepository) list(ctx context.Context, column, id string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE `+column+` = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, mapPgError("list appointments", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, mapPgError("list appointments", err)
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, mapPgError("list appointments", rows.Err())
	}
	return appts, nil
}

func (r *AppointmentRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"client_id":      appt.ClientID,
		"staff_id":       appt.StaffID,
		"service_id":     appt.ServiceID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"status":         appt.Status,
	})
	if err != nil {
		return apperr.Persistence("marshal outbox event", false, err)
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return mapPgError("insert outbox event", err)
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.StaffID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&cancelledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.CancelledAt = cancelledAt
	return appt, nil
}

// isOverlapViolation matches the exclusion constraint on
// (staff_id, time range) for scheduled appointments.
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func mapPgError(op string, err error) error {
	return apperr.Persistence(op, isSerializationFailure(err), err)
}
