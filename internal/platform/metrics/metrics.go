package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Methods are
// nil-receiver safe so services can run without metrics in tests.
type Metrics struct {
	HTTPRequestDuration   *prometheus.HistogramVec
	UsersRegistered       prometheus.Counter
	Logins                *prometheus.CounterVec
	DonorsCreated         prometheus.Counter
	DonationsRecorded     prometheus.Counter
	UnitsAdded            *prometheus.CounterVec
	UnitTransitions       *prometheus.CounterVec
	RequestsCreated       prometheus.Counter
	RequestStatusChanges  *prometheus.CounterVec
	CampaignsCreated      prometheus.Counter
	DegradedResponses     *prometheus.CounterVec
	ActivityWriteFailures prometheus.Counter
	DashboardLatency      prometheus.Histogram
	RateLimited           prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifeflow_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeflow_users_registered_total",
			Help: "Total number of staff accounts registered",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeflow_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		DonorsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeflow_donors_created_total",
			Help: "Total number of donors created",
		}),
		DonationsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeflow_donations_recorded_total",
			Help: "Total number of donations recorded against donors",
		}),
		UnitsAdded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeflow_inventory_units_added_total",
			Help: "Blood units taken into inventory",
		}, []string{"blood_type", "component"}),
		UnitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeflow_inventory_unit_transitions_total",
			Help: "Blood unit status transitions by target status",
		}, []string{"status"}),
		RequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeflow_requests_created_total",
			Help: "Total number of blood requests submitted",
		}),
		RequestStatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeflow_request_status_changes_total",
			Help: "Blood request status changes by target status",
		}, []string{"status"}),
		CampaignsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeflow_campaigns_created_total",
			Help: "Total number of campaigns created",
		}),
		DegradedResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeflow_degraded_responses_total",
			Help: "Responses served from the demonstration dataset because a store failed",
		}, []string{"view"}),
		ActivityWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeflow_activity_write_failures_total",
			Help: "Activity log entries that could not be persisted",
		}),
		DashboardLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifeflow_dashboard_aggregation_seconds",
			Help:    "Time spent aggregating dashboard statistics",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeflow_rate_limited_total",
			Help: "Requests rejected by the API rate limiter",
		}),
	}
}

func (m *Metrics) ObserveHTTPRequest(route, method string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementUsersRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementLogin(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementDonorsCreated() {
	if m == nil {
		return
	}
	m.DonorsCreated.Inc()
}

func (m *Metrics) IncrementDonationsRecorded() {
	if m == nil {
		return
	}
	m.DonationsRecorded.Inc()
}

func (m *Metrics) AddUnits(bloodType, component string, n int) {
	if m == nil {
		return
	}
	m.UnitsAdded.WithLabelValues(bloodType, component).Add(float64(n))
}

func (m *Metrics) IncrementUnitTransition(status string) {
	m.AddUnitTransitions(status, 1)
}

func (m *Metrics) AddUnitTransitions(status string, n int) {
	if m == nil {
		return
	}
	m.UnitTransitions.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) IncrementRequestsCreated() {
	if m == nil {
		return
	}
	m.RequestsCreated.Inc()
}

func (m *Metrics) IncrementRequestStatus(status string) {
	if m == nil {
		return
	}
	m.RequestStatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementCampaignsCreated() {
	if m == nil {
		return
	}
	m.CampaignsCreated.Inc()
}

func (m *Metrics) IncrementDegraded(view string) {
	if m == nil {
		return
	}
	m.DegradedResponses.WithLabelValues(view).Inc()
}

func (m *Metrics) IncrementActivityWriteFailures() {
	if m == nil {
		return
	}
	m.ActivityWriteFailures.Inc()
}

func (m *Metrics) ObserveDashboard(start time.Time) {
	if m == nil {
		return
	}
	m.DashboardLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
