package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_chat_duration_seconds",
			Help:    "Chat message handling duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"outcome"},
	)

	ChatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_chat_messages_total",
			Help: "Total chat messages processed",
		},
		[]string{"outcome"},
	)

	CrisisDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_crisis_detections_total",
			Help: "Crisis language detections by category and signal",
		},
		[]string{"category", "signal"},
	)

	CoverageGains = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_coverage_gains_total",
			Help: "Rubric areas newly covered in a conversation",
		},
		[]string{"area"},
	)

	GamingFlags = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_gaming_flags_total",
			Help: "Messages flagged by the anti-gaming heuristic, by resulting action",
		},
		[]string{"action"},
	)

	ResolverConfidence = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_resolver_matches_total",
			Help: "Document resolver outcomes per axis and confidence",
		},
		[]string{"axis", "confidence"},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_uploads_total",
			Help: "Document uploads by resulting status",
		},
		[]string{"status"},
	)

	WeeksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_weeks_completed_total",
			Help: "Student weeks that crossed the exchange threshold",
		},
	)

	AssessmentSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_assessment_submissions_total",
			Help: "Assessment submission attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_llm_requests_total",
			Help: "Calls to the model boundary by status",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	SessionCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_session_cache_total",
			Help: "Session cache lookups by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ChatDuration)
		prometheus.MustRegister(ChatMessagesTotal)
		prometheus.MustRegister(CrisisDetections)
		prometheus.MustRegister(CoverageGains)
		prometheus.MustRegister(GamingFlags)
		prometheus.MustRegister(ResolverConfidence)
		prometheus.MustRegister(UploadsTotal)
		prometheus.MustRegister(WeeksCompleted)
		prometheus.MustRegister(AssessmentSubmissions)
		prometheus.MustRegister(LLMRequests)
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(SessionCache)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
