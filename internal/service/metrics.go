package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders persisted",
		},
	)

	orderPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_persist_failures_total",
			Help: "Orders whose payment succeeded but could not be saved",
		},
	)

	orderStatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_updates_total",
			Help: "Total number of order status changes by target status",
		},
		[]string{"status"},
	)

	checkoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Checkout attempts by stage and result",
		},
		[]string{"stage", "result"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Order notifications by recipient kind and result",
		},
		[]string{"kind", "result"},
	)
)
