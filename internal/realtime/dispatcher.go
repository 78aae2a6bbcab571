package realtime

import (
	"encoding/json"
	"log/slog"

	"github.com/salonbook/salonbook/internal/metrics"
)

// EventKind names the server-pushed message types.
type EventKind string

const (
	EventAppointmentCreated   EventKind = "AppointmentCreated"
	EventAppointmentUpdated   EventKind = "AppointmentUpdated"
	EventAppointmentCancelled EventKind = "AppointmentCancelled"
)

// Envelope is the wire shape of a pushed event.
type Envelope struct {
	Event   EventKind       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher pushes domain events to every live connection of the interested
// identities. Delivery is best-effort and fire-and-forget: offline recipients
// receive nothing, failed pushes are logged and counted, and nothing here can
// fail the booking that already committed.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Notify marshals the payload once and pushes it to every live connection of
// each recipient identity. Recipients are addressed individually, never
// broadcast globally.
func (d *Dispatcher) Notify(kind EventKind, payload any, recipients ...string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("notification payload marshal failed", "event", string(kind), "err", err)
		return
	}
	data, err := json.Marshal(Envelope{Event: kind, Payload: raw})
	if err != nil {
		d.logger.Error("notification envelope marshal failed", "event", string(kind), "err", err)
		return
	}

	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		for _, conn := range d.registry.ConnectionsFor(userID) {
			if err := conn.Send(data); err != nil {
				metrics.NotificationsDropped.WithLabelValues(string(kind)).Inc()
				d.logger.Warn("notification push failed",
					"event", string(kind),
					"user_id", userID,
					"err", err,
				)
				continue
			}
			metrics.NotificationsDelivered.WithLabelValues(string(kind)).Inc()
		}
	}
}
