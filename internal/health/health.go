// Package health exposes liveness and readiness probes for the account
// service and its backing components (Postgres, Redis, object storage).
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth describes the outcome of a single component probe.
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Report is the full health check response.
type Report struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// CheckFunc probes an external component. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Checker runs component probes with a shared timeout.
type Checker struct {
	db      *sql.DB
	redis   *redis.Client
	storage CheckFunc
	version string
	timeout time.Duration
}

// CheckerConfig holds configuration for the health checker. Any nil
// component is reported as unhealthy in deep checks.
type CheckerConfig struct {
	DB      *sql.DB
	Redis   *redis.Client
	Storage CheckFunc
	Version string
	Timeout time.Duration
}

// NewChecker creates a new health checker
func NewChecker(cfg *CheckerConfig) *Checker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		db:      cfg.DB,
		redis:   cfg.Redis,
		storage: cfg.Storage,
		version: cfg.Version,
		timeout: timeout,
	}
}

func (c *Checker) probe(ctx context.Context, name string, fn CheckFunc) ComponentHealth {
	start := time.Now()

	if fn == nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: name + " not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  name + " check failed",
			Duration: time.Since(start).String(),
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

func (c *Checker) dbCheck() CheckFunc {
	if c.db == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := c.db.PingContext(ctx); err != nil {
			return err
		}
		var result int
		return c.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	}
}

func (c *Checker) redisCheck() CheckFunc {
	if c.redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return c.redis.Ping(ctx).Err()
	}
}

// Check performs a basic liveness check.
func (c *Checker) Check(ctx context.Context) *Report {
	return &Report{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck probes every backing component in parallel and reports
// readiness.
func (c *Checker) DeepCheck(ctx context.Context) *Report {
	report := &Report{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	checks := map[string]CheckFunc{
		"database": c.dbCheck(),
		"redis":    c.redisCheck(),
		"storage":  c.storage,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			result := c.probe(ctx, name, fn)
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		}(name, fn)
	}

	wg.Wait()

	for _, comp := range report.Components {
		if comp.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
			break
		}
		if comp.Status == StatusDegraded && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	return report
}

// Handler provides HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
}

// NewHandler creates a new health handler
func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

func writeReport(w http.ResponseWriter, report *Report) {
	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(report)
}

// LivenessHandler reports whether the process is alive.
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.checker.Check(r.Context()))
}

// ReadinessHandler reports whether the service is ready to receive
// traffic. Degraded still accepts traffic.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.checker.DeepCheck(r.Context()))
}
