package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "campsite"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	reservationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Reservation operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	dateConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "date_conflicts_total",
			Help:      "Date conflicts by detection path (precheck or constraint).",
		},
		[]string{"path"},
	)

	inconsistencies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inconsistencies_total",
			Help:      "Missing link or guest records found while mutating a reservation.",
		},
		[]string{"kind"},
	)

	availabilityCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_cache_total",
			Help:      "Availability cache lookups by result.",
		},
		[]string{"result"},
	)
)

const (
	PathPrecheck   = "precheck"
	PathConstraint = "constraint"

	KindLink  = "link"
	KindGuest = "guest"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationOps, dateConflicts, inconsistencies, availabilityCache)
	})
}

func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func IncOperation(operation, outcome string) {
	reservationOps.WithLabelValues(operation, outcome).Inc()
}

func IncDateConflict(path string) {
	dateConflicts.WithLabelValues(path).Inc()
}

func IncInconsistency(kind string) {
	inconsistencies.WithLabelValues(kind).Inc()
}

func IncCache(result string) {
	availabilityCache.WithLabelValues(result).Inc()
}

// DateConflicts returns the counter for path; exposed for tests.
func DateConflicts(path string) prometheus.Counter {
	return dateConflicts.WithLabelValues(path)
}

// Inconsistencies returns the counter for kind; exposed for tests.
func Inconsistencies(kind string) prometheus.Counter {
	return inconsistencies.WithLabelValues(kind)
}

// AvailabilityCache returns the counter for result; exposed for tests.
func AvailabilityCache(result string) prometheus.Counter {
	return availabilityCache.WithLabelValues(result)
}
