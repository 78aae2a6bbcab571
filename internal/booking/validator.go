package booking

import (
	"context"
	"time"

	"github.com/salonbook/salonbook/internal/apperr"
	"github.com/salonbook/salonbook/internal/schedule"
	"github.com/salonbook/salonbook/internal/storage"
)

// suggestionGap is the pause left after the blocking appointment when
// computing the advisory alternative window.
const suggestionGap = 30 * time.Minute

// Validator decides whether a requested window is bookable for a staff
// member: not in the past, inside business hours, and free of overlap with
// that staff member's scheduled appointments.
type Validator struct {
	store storage.AppointmentStore
	hours schedule.BusinessHours
	now   func() time.Time
}

func NewValidator(store storage.AppointmentStore, hours schedule.BusinessHours) *Validator {
	return &Validator{store: store, hours: hours, now: time.Now}
}

// Validate returns nil when the window is accepted, a ValidationError for
// past-dated or out-of-hours windows, or a ConflictError carrying the
// suggested alternative when the staff member is already booked. The
// suggestion starts thirty minutes after the blocking appointment ends and
// preserves the requested duration; it is advisory only and is NOT
// re-validated against business hours or further overlaps.
//
// Callers re-validating a reschedule pass the appointment's own id as
// excludeID so it does not conflict with itself. Update paths must re-run
// this, never skip it.
func (v *Validator) Validate(ctx context.Context, staffID string, start, end time.Time, excludeID string) error {
	if !end.After(start) {
		return apperr.Validation("end time must be after start time")
	}
	if start.Before(v.now()) {
		return apperr.Validation("start time is in the past")
	}
	if !v.hours.Admits(start, end) {
		return apperr.Validation("requested window is outside business hours")
	}

	existing, err := v.store.FindScheduledOverlaps(ctx, staffID, start, end, excludeID)
	if err != nil {
		return err
	}

	var blockingEnd time.Time
	for _, appt := range existing {
		if schedule.Overlaps(start, end, appt.StartTime, appt.EndTime) && appt.EndTime.After(blockingEnd) {
			blockingEnd = appt.EndTime
		}
	}
	if !blockingEnd.IsZero() {
		suggestedStart := blockingEnd.Add(suggestionGap)
		return &apperr.ConflictError{
			Reason:         "staff member is unavailable for the requested window",
			SuggestedStart: suggestedStart,
			SuggestedEnd:   suggestedStart.Add(end.Sub(start)),
		}
	}
	return nil
}
