package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts credential and federated logins by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_login_attempts_total",
		Help: "Login attempts by channel and outcome",
	}, []string{"channel", "outcome"})

	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_sessions_created_total",
		Help: "Sessions created by channel",
	}, []string{"channel"})

	// SessionsDestroyed is labelled by reason: logout, revoked, evicted.
	SessionsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_sessions_destroyed_total",
		Help: "Sessions removed before expiry",
	}, []string{"reason"})

	AccessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_access_denied_total",
		Help: "Authorization denials by action and reason",
	}, []string{"action", "reason"})

	// PredictionRequests is labelled by the source that answered: primary,
	// secondary or fallback.
	PredictionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_prediction_requests_total",
		Help: "Prediction requests by answering source",
	}, []string{"source"})

	MailDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_mail_delivered_total",
		Help: "Outbox messages processed by result",
	}, []string{"result"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expense_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
