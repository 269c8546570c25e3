package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestCount    map[string]*uint64    // endpoint:method -> count
	requestDuration map[string]*Histogram // endpoint:method -> duration histogram
	requestErrors   map[string]*uint64    // endpoint:status_class -> count

	// Custom counters (registrations, logins, password resets, mail failures)
	counters map[string]*uint64

	startTime time.Time
}

// Histogram tracks value distributions
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
	buckets    []float64
	bucketVals []uint64
}

// NewHistogram creates a new histogram with default buckets
func NewHistogram() *Histogram {
	return &Histogram{
		buckets:    []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		bucketVals: make([]uint64, 11),
	}
}

// Observe records a value
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		counters:        make(map[string]*uint64),
		startTime:       time.Now(),
	}
}

// global metrics instance
var defaultMetrics = New()

// Default returns the default metrics instance
func Default() *Metrics {
	return defaultMetrics
}

// RecordRequest records a request. Map entry pointers are captured while the
// lock is held; reading the maps after unlocking would race with a concurrent
// first-hit insert.
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := fmt.Sprintf("%s:%s", path, method)

	m.mu.Lock()
	if m.requestCount[key] == nil {
		var zero uint64
		m.requestCount[key] = &zero
	}
	if m.requestDuration[key] == nil {
		m.requestDuration[key] = NewHistogram()
	}
	count := m.requestCount[key]
	hist := m.requestDuration[key]
	m.mu.Unlock()

	atomic.AddUint64(count, 1)
	hist.Observe(duration.Seconds())

	// Track errors by status class
	if statusCode >= 400 {
		errorKey := fmt.Sprintf("%s:%d", key, statusCode/100*100)
		m.mu.Lock()
		if m.requestErrors[errorKey] == nil {
			var zero uint64
			m.requestErrors[errorKey] = &zero
		}
		errCount := m.requestErrors[errorKey]
		m.mu.Unlock()
		atomic.AddUint64(errCount, 1)
	}
}

// IncCounter increments a counter
func (m *Metrics) IncCounter(name string) {
	m.mu.Lock()
	if m.counters[name] == nil {
		var zero uint64
		m.counters[name] = &zero
	}
	counter := m.counters[name]
	m.mu.Unlock()
	atomic.AddUint64(counter, 1)
}

// CounterValue returns the current value of a counter
func (m *Metrics) CounterValue(name string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.counters[name]; c != nil {
		return atomic.LoadUint64(c)
	}
	return 0
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		uptime := time.Since(m.startTime).Seconds()
		sb.WriteString("# HELP bamina_uptime_seconds Time since the server started\n")
		sb.WriteString("# TYPE bamina_uptime_seconds gauge\n")
		sb.WriteString(fmt.Sprintf("bamina_uptime_seconds %f\n\n", uptime))

		m.mu.RLock()
		defer m.mu.RUnlock()

		if len(m.requestCount) > 0 {
			sb.WriteString("# HELP bamina_http_requests_total Total HTTP requests\n")
			sb.WriteString("# TYPE bamina_http_requests_total counter\n")
			for _, key := range sortedKeys(m.requestCount) {
				parts := strings.SplitN(key, ":", 2)
				if len(parts) == 2 {
					count := atomic.LoadUint64(m.requestCount[key])
					sb.WriteString(fmt.Sprintf("bamina_http_requests_total{endpoint=%q,method=%q} %d\n", parts[0], parts[1], count))
				}
			}
			sb.WriteString("\n")
		}

		if len(m.requestErrors) > 0 {
			sb.WriteString("# HELP bamina_http_request_errors_total HTTP requests by error class\n")
			sb.WriteString("# TYPE bamina_http_request_errors_total counter\n")
			for _, key := range sortedKeys(m.requestErrors) {
				count := atomic.LoadUint64(m.requestErrors[key])
				sb.WriteString(fmt.Sprintf("bamina_http_request_errors_total{key=%q} %d\n", key, count))
			}
			sb.WriteString("\n")
		}

		if len(m.counters) > 0 {
			for _, name := range sortedKeys(m.counters) {
				count := atomic.LoadUint64(m.counters[name])
				sb.WriteString(fmt.Sprintf("# TYPE bamina_%s counter\n", name))
				sb.WriteString(fmt.Sprintf("bamina_%s %d\n", name, count))
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sb.String()))
	}
}

// Middleware records request metrics for every handled request
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.RecordRequest(r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
