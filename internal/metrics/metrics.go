package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	// HTTPRequestsTotal counts requests by method, chi route pattern and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks handler latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Auth Metrics
var (
	// OTPRequests counts login code requests by outcome (sent, unknown, inactive, mail_error)
	OTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_requests_total",
			Help: "Login code requests by outcome",
		},
		[]string{"outcome"},
	)

	// OTPVerifications counts code verifications by outcome
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Login code verifications by outcome",
		},
		[]string{"outcome"},
	)
)

// Learning Metrics
var (
	// AttemptsFinalized counts graded attempts by result (passed, failed)
	AttemptsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_attempts_finalized_total",
			Help: "Assessment attempts that reached GRADED, by result",
		},
		[]string{"result"},
	)

	// AnswersManuallyGraded counts descriptive answers scored by a trainer
	AnswersManuallyGraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_answers_manually_graded_total",
			Help: "Descriptive answers graded by a human",
		},
	)

	// ProofsReviewed counts proof reviews by decision
	ProofsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proofs_reviewed_total",
			Help: "Completion proofs reviewed, by decision",
		},
		[]string{"decision"},
	)
)

// Scheduler Metrics
var (
	// CronRuns counts background job runs by job and status
	CronRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cron_runs_total",
			Help: "Background job runs by job and status",
		},
		[]string{"job", "status"},
	)

	// OverdueMarked counts rows flipped to OVERDUE by kind (phase, assignment)
	OverdueMarked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overdue_marked_total",
			Help: "Rows marked overdue by kind",
		},
		[]string{"kind"},
	)

	// WebsocketClients tracks connected notification clients
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients_connected",
			Help: "Connected notification websocket clients",
		},
	)
)
