package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/salonbook/salonbook/internal/apperr"
	"github.com/salonbook/salonbook/internal/model"
	"github.com/salonbook/salonbook/internal/schedule"
	"github.com/salonbook/salonbook/internal/storage"
)

// memStore is an in-memory AppointmentStore for exercising the validator and
// service without a database.
type memStore struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
}

func newMemStore() *memStore {
	return &memStore{appts: make(map[string]model.Appointment)}
}

func (s *memStore) GetByID(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment", id)
	}
	return appt, nil
}

func (s *memStore) FindScheduledOverlaps(_ context.Context, staffID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, appt := range s.appts {
		if appt.StaffID != staffID || appt.Status != model.StatusScheduled || appt.ID == excludeID {
			continue
		}
		if schedule.Overlaps(start, end, appt.StartTime, appt.EndTime) {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	appt.CreatedAt = time.Now()
	s.appts[appt.ID] = *appt
	return nil
}

func (s *memStore) Update(_ context.Context, id string, upd storage.AppointmentUpdate) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment", id)
	}
	appt.StaffID = upd.StaffID
	appt.ServiceID = upd.ServiceID
	appt.StartTime = upd.StartTime
	appt.EndTime = upd.EndTime
	s.appts[id] = appt
	return appt, nil
}

func (s *memStore) SetStatus(_ context.Context, id string, status model.Status) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment", id)
	}
	appt.Status = status
	if status == model.StatusCancelled {
		now := time.Now()
		appt.CancelledAt = &now
	}
	s.appts[id] = appt
	return appt, nil
}

func (s *memStore) ListByClient(_ context.Context, clientID string, _ int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, appt := range s.appts {
		if appt.ClientID == clientID {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (s *memStore) ListByStaff(_ context.Context, staffID string, _ int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, appt := range s.appts {
		if appt.StaffID == staffID {
			out = append(out, appt)
		}
	}
	return out, nil
}

var _ storage.AppointmentStore = (*memStore)(nil)

// Monday 2026-03-02 07:00 UTC, before opening. Every requested window in the
// tests is in the future relative to this.
var clockNow = time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)

func testValidator(store storage.AppointmentStore) *Validator {
	v := NewValidator(store, schedule.DefaultBusinessHours())
	v.now = func() time.Time { return clockNow }
	return v
}

// tuesday returns a window on Tuesday 2026-03-03.
func tuesday(startHour, startMin, endHour, endMin int) (time.Time, time.Time) {
	day := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
		day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute)
}

func TestValidateAcceptsFreeWindow(t *testing.T) {
	v := testValidator(newMemStore())
	start, end := tuesday(9, 0, 9, 45)
	if err := v.Validate(context.Background(), "staff-1", start, end, ""); err != nil {
		t.Fatalf("expected free window to be accepted, got %v", err)
	}
}

func TestValidateRejectsInvertedWindow(t *testing.T) {
	v := testValidator(newMemStore())
	start, end := tuesday(10, 0, 9, 0)
	err := v.Validate(context.Background(), "staff-1", start, end, "")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsPastWindow(t *testing.T) {
	v := testValidator(newMemStore())
	start := clockNow.Add(-2 * time.Hour)
	err := v.Validate(context.Background(), "staff-1", start, start.Add(45*time.Minute), "")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for past start, got %v", err)
	}
}

func TestValidateBusinessHours(t *testing.T) {
	v := testValidator(newMemStore())
	cases := []struct {
		name       string
		start, end time.Time
		ok         bool
	}{
		{"weekday inside hours", time.Date(2026, time.March, 3, 8, 0, 0, 0, time.UTC), time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC), true},
		{"weekday ends at close", time.Date(2026, time.March, 3, 16, 0, 0, 0, time.UTC), time.Date(2026, time.March, 3, 17, 0, 0, 0, time.UTC), true},
		{"weekday before opening", time.Date(2026, time.March, 3, 7, 30, 0, 0, time.UTC), time.Date(2026, time.March, 3, 8, 30, 0, 0, time.UTC), false},
		{"weekday past closing", time.Date(2026, time.March, 3, 16, 30, 0, 0, time.UTC), time.Date(2026, time.March, 3, 17, 30, 0, 0, time.UTC), false},
		{"saturday morning", time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC), time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC), true},
		{"saturday afternoon", time.Date(2026, time.March, 7, 12, 30, 0, 0, time.UTC), time.Date(2026, time.March, 7, 13, 30, 0, 0, time.UTC), false},
		{"sunday", time.Date(2026, time.March, 8, 10, 0, 0, 0, time.UTC), time.Date(2026, time.March, 8, 11, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(context.Background(), "staff-1", tc.start, tc.end, "")
			if tc.ok && err != nil {
				t.Fatalf("expected acceptance, got %v", err)
			}
			if !tc.ok && !apperr.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateConflictSuggestsAlternative(t *testing.T) {
	store := newMemStore()
	existStart, existEnd := tuesday(9, 0, 9, 45)
	if err := store.Insert(context.Background(), &model.Appointment{
		ID: "a1", ClientID: "c1", StaffID: "staff-1", ServiceID: "svc-1",
		StartTime: existStart, EndTime: existEnd, Status: model.StatusScheduled,
	}); err != nil {
		t.Fatal(err)
	}
	v := testValidator(store)

	start, end := tuesday(9, 15, 10, 0)
	err := v.Validate(context.Background(), "staff-1", start, end, "")
	conflict, ok := apperr.AsConflict(err)
	if !ok {
		t.Fatalf("expected conflict, got %v", err)
	}

	wantStart, _ := tuesday(10, 15, 11, 0)
	if !conflict.SuggestedStart.Equal(wantStart) {
		t.Fatalf("suggested start = %v, want %v", conflict.SuggestedStart, wantStart)
	}
	if got := conflict.SuggestedEnd.Sub(conflict.SuggestedStart); got != 45*time.Minute {
		t.Fatalf("suggestion duration = %v, want 45m", got)
	}
}

func TestValidateSuggestionUsesLatestBlocker(t *testing.T) {
	store := newMemStore()
	s1, e1 := tuesday(9, 0, 9, 45)
	s2, e2 := tuesday(9, 45, 10, 30)
	for i, w := range []struct{ s, e time.Time }{{s1, e1}, {s2, e2}} {
		if err := store.Insert(context.Background(), &model.Appointment{
			ID: uuid.NewString(), ClientID: "c1", StaffID: "staff-1", ServiceID: "svc-1",
			StartTime: w.s, EndTime: w.e, Status: model.StatusScheduled,
		}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	v := testValidator(store)

	start, end := tuesday(9, 15, 10, 0)
	conflict, ok := apperr.AsConflict(v.Validate(context.Background(), "staff-1", start, end, ""))
	if !ok {
		t.Fatal("expected conflict")
	}
	want, _ := tuesday(11, 0, 0, 0)
	if !conflict.SuggestedStart.Equal(want) {
		t.Fatalf("suggested start = %v, want %v", conflict.SuggestedStart, want)
	}
}

func TestValidateTouchingWindowsDoNotConflict(t *testing.T) {
	store := newMemStore()
	existStart, existEnd := tuesday(9, 0, 9, 45)
	if err := store.Insert(context.Background(), &model.Appointment{
		ID: "a1", ClientID: "c1", StaffID: "staff-1", ServiceID: "svc-1",
		StartTime: existStart, EndTime: existEnd, Status: model.StatusScheduled,
	}); err != nil {
		t.Fatal(err)
	}
	v := testValidator(store)

	start, end := tuesday(9, 45, 10, 30)
	if err := v.Validate(context.Background(), "staff-1", start, end, ""); err != nil {
		t.Fatalf("back-to-back window should be accepted, got %v", err)
	}
}

func TestValidateIgnoresCancelledAppointments(t *testing.T) {
	store := newMemStore()
	existStart, existEnd := tuesday(9, 0, 9, 45)
	if err := store.Insert(context.Background(), &model.Appointment{
		ID: "a1", ClientID: "c1", StaffID: "staff-1", ServiceID: "svc-1",
		StartTime: existStart, EndTime: existEnd, Status: model.StatusScheduled,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SetStatus(context.Background(), "a1", model.StatusCancelled); err != nil {
		t.Fatal(err)
	}
	v := testValidator(store)

	if err := v.Validate(context.Background(), "staff-1", existStart, existEnd, ""); err != nil {
		t.Fatalf("cancelled appointment must free the window, got %v", err)
	}
}

func TestValidateExcludesOwnAppointment(t *testing.T) {
	store := newMemStore()
	existStart, existEnd := tuesday(9, 0, 9, 45)
	if err := store.Insert(context.Background(), &model.Appointment{
		ID: "a1", ClientID: "c1", StaffID: "staff-1", ServiceID: "svc-1",
		StartTime: existStart, EndTime: existEnd, Status: model.StatusScheduled,
	}); err != nil {
		t.Fatal(err)
	}
	v := testValidator(store)

	// Shifting its own window by 15 minutes must not conflict with itself.
	start, end := tuesday(9, 15, 10, 0)
	if err := v.Validate(context.Background(), "staff-1", start, end, "a1"); err != nil {
		t.Fatalf("expected self-exclusion, got %v", err)
	}
}

func TestValidateOtherStaffUnaffected(t *testing.T) {
	store := newMemStore()
	existStart, existEnd := tuesday(9, 0, 9, 45)
	if err := store.Insert(context.Background(), &model.Appointment{
		ID: "a1", ClientID: "c1", StaffID: "staff-1", ServiceID: "svc-1",
		StartTime: existStart, EndTime: existEnd, Status: model.StatusScheduled,
	}); err != nil {
		t.Fatal(err)
	}
	v := testValidator(store)

	if err := v.Validate(context.Background(), "staff-2", existStart, existEnd, ""); err != nil {
		t.Fatalf("another staff member's calendar must be independent, got %v", err)
	}
}

type failingStore struct {
	*memStore
	findErr error
}

func (s *failingStore) FindScheduledOverlaps(ctx context.Context, staffID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.memStore.FindScheduledOverlaps(ctx, staffID, start, end, excludeID)
}

func TestValidatePropagatesStoreFailure(t *testing.T) {
	store := &failingStore{
		memStore: newMemStore(),
		findErr:  apperr.Persistence("overlap query", false, errors.New("connection refused")),
	}
	v := testValidator(store)

	start, end := tuesday(9, 0, 9, 45)
	err := v.Validate(context.Background(), "staff-1", start, end, "")
	var perr *apperr.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if apperr.IsValidation(err) {
		t.Fatal("store failure must not be reported as validation")
	}
}
