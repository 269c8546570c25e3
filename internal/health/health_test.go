package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_BasicCheck(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Version: "1.0.0",
		Timeout: 5 * time.Second,
	})

	report := checker.Check(context.Background())

	if report.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", report.Status)
	}
	if report.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", report.Version)
	}
}

func TestChecker_DeepCheck_StorageHealthy(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Storage: func(ctx context.Context) error {
			return nil
		},
		Version: "1.0.0",
		Timeout: 5 * time.Second,
	})

	report := checker.DeepCheck(context.Background())

	if len(report.Components) == 0 {
		t.Fatal("expected components to be populated")
	}
	if report.Components["storage"].Status != StatusHealthy {
		t.Errorf("expected storage component healthy, got %s", report.Components["storage"].Status)
	}
	// Database and redis are not configured, so readiness is unhealthy.
	if report.Status != StatusUnhealthy {
		t.Errorf("expected overall status unhealthy, got %s", report.Status)
	}
}

func TestChecker_DeepCheck_StorageUnhealthy(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Storage: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
		Timeout: 5 * time.Second,
	})

	report := checker.DeepCheck(context.Background())

	if report.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", report.Status)
	}
	if report.Components["storage"].Status != StatusUnhealthy {
		t.Errorf("expected storage component unhealthy, got %s", report.Components["storage"].Status)
	}
}

func TestHandler_LivenessHandler(t *testing.T) {
	handler := NewHandler(NewChecker(&CheckerConfig{Version: "1.0.0"}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.LivenessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if report.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", report.Status)
	}
}

func TestHandler_ReadinessHandler_Unconfigured(t *testing.T) {
	handler := NewHandler(NewChecker(&CheckerConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}
