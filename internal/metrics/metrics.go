package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "family_vault"

type Metrics struct {
	registry *prometheus.Registry

	interviewsStarted   prometheus.Counter
	interviewsCompleted prometheus.Counter
	interviewsSaved     prometheus.Counter
	questionsAnswered   *prometheus.CounterVec
	profilesGenerated   prometheus.Counter
	apiCalls            *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec

	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot is a point-in-time copy of the interview counters.
type Snapshot struct {
	InterviewsStarted   int64     `json:"interviews_started"`
	InterviewsCompleted int64     `json:"interviews_completed"`
	InterviewsSaved     int64     `json:"interviews_saved"`
	QuestionsAnswered   int64     `json:"questions_answered"`
	FollowupsAnswered   int64     `json:"followups_answered"`
	ProfilesGenerated   int64     `json:"profiles_generated"`
	APICallsTotal       int64     `json:"api_calls_total"`
	APICallsSuccessful  int64     `json:"api_calls_successful"`
	LastUpdateTime      time.Time `json:"last_update_time"`
}

// NewMetrics creates the counters on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		interviewsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_started_total",
			Help:      "Interviews started or resumed.",
		}),
		interviewsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_completed_total",
			Help:      "Interviews saved as complete.",
		}),
		interviewsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_saved_total",
			Help:      "Interviews saved for later.",
		}),
		questionsAnswered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers recorded, by kind.",
		}, []string{"kind"}),
		profilesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_extracted_total",
			Help:      "Successful structured data extractions.",
		}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Model API calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Interview sessions held in memory.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		snapshot: Snapshot{LastUpdateTime: time.Now()},
	}

	m.registry.MustRegister(
		m.interviewsStarted,
		m.interviewsCompleted,
		m.interviewsSaved,
		m.questionsAnswered,
		m.profilesGenerated,
		m.apiCalls,
		m.activeSessions,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) update(fn func(s *Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.snapshot)
	m.snapshot.LastUpdateTime = time.Now()
}

func (m *Metrics) IncrementInterviewsStarted() {
	m.interviewsStarted.Inc()
	m.update(func(s *Snapshot) { s.InterviewsStarted++ })
}

func (m *Metrics) IncrementInterviewsCompleted() {
	m.interviewsCompleted.Inc()
	m.update(func(s *Snapshot) { s.InterviewsCompleted++ })
}

func (m *Metrics) IncrementInterviewsSaved() {
	m.interviewsSaved.Inc()
	m.update(func(s *Snapshot) { s.InterviewsSaved++ })
}

func (m *Metrics) IncrementQuestionsAnswered() {
	m.questionsAnswered.WithLabelValues("main").Inc()
	m.update(func(s *Snapshot) { s.QuestionsAnswered++ })
}

func (m *Metrics) IncrementFollowupsAnswered() {
	m.questionsAnswered.WithLabelValues("followup").Inc()
	m.update(func(s *Snapshot) { s.FollowupsAnswered++ })
}

func (m *Metrics) IncrementProfilesGenerated() {
	m.profilesGenerated.Inc()
	m.update(func(s *Snapshot) { s.ProfilesGenerated++ })
}

func (m *Metrics) IncrementAPICall(operation string, success bool) {
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.apiCalls.WithLabelValues(operation, outcome).Inc()
	m.update(func(s *Snapshot) {
		s.APICallsTotal++
		if success {
			s.APICallsSuccessful++
		}
	})
}

func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
