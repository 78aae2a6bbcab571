package model

import "time"

// Status is the closed set of appointment states. Transitions are
// one-directional: a scheduled appointment can complete or cancel,
// terminal states never move again.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusScheduled {
		return false
	}
	return next == StatusCompleted || next == StatusCancelled
}

type Appointment struct {
	ID          string
	ClientID    string
	StaffID     string
	ServiceID   string
	StartTime   time.Time
	EndTime     time.Time
	Status      Status
	CancelledAt *time.Time
	CreatedAt   time.Time
}
