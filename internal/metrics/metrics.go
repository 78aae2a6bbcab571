package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsAccepted counts bookings that passed validation and committed.
	BookingsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salonbook_bookings_accepted_total",
		Help: "Total number of bookings accepted and committed",
	})

	// BookingsRejected counts rejected booking attempts by reason
	// (validation, conflict).
	BookingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salonbook_bookings_rejected_total",
		Help: "Total number of booking attempts rejected",
	}, []string{"reason"})

	// NotificationsDelivered counts real-time events pushed to live
	// connections, by event kind.
	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salonbook_notifications_delivered_total",
		Help: "Total number of real-time notifications delivered",
	}, []string{"event"})

	// NotificationsDropped counts pushes that failed (slow or dead
	// connections). Dropped pushes never affect the booking outcome.
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salonbook_notifications_dropped_total",
		Help: "Total number of real-time notifications dropped",
	}, []string{"event"})

	// WSConnections is the number of currently registered live connections.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "salonbook_ws_connections",
		Help: "Current number of live real-time connections",
	})

	// CatalogCacheHits tracks listing cache effectiveness.
	CatalogCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salonbook_catalog_cache_requests_total",
		Help: "Catalog listing cache lookups by outcome (hit/miss)",
	}, []string{"outcome"})
)
