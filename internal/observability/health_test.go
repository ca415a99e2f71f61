package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Service != "session-recorder" {
		t.Errorf("Expected service 'session-recorder', got '%s'", status.Service)
	}
	if status.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", status.Status)
	}
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	handler := ReadinessHandler(map[string]HealthCheckFunc{
		"backend": func(ctx context.Context) (bool, error) { return true, nil },
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var status HealthStatus
	json.NewDecoder(rec.Body).Decode(&status)
	if status.Dependencies["backend"].Status != "healthy" {
		t.Errorf("Expected backend healthy, got %+v", status.Dependencies["backend"])
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	handler := ReadinessHandler(map[string]HealthCheckFunc{
		"backend": func(ctx context.Context) (bool, error) { return false, errors.New("connection refused") },
		"catalog": func(ctx context.Context) (bool, error) { return true, nil },
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}

	var status HealthStatus
	json.NewDecoder(rec.Body).Decode(&status)
	if status.Status != "not_ready" {
		t.Errorf("Expected status 'not_ready', got '%s'", status.Status)
	}
	if status.Dependencies["backend"].Message != "connection refused" {
		t.Errorf("Expected backend message 'connection refused', got '%s'", status.Dependencies["backend"].Message)
	}
	if status.Dependencies["catalog"].Status != "healthy" {
		t.Errorf("Expected catalog healthy, got '%s'", status.Dependencies["catalog"].Status)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug").String() != "debug" {
		t.Errorf("Expected debug level, got %s", ParseLevel("debug"))
	}
	if ParseLevel("bogus").String() != "info" {
		t.Errorf("Expected unknown level to default to info, got %s", ParseLevel("bogus"))
	}
}
