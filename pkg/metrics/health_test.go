package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckAllHealthy(t *testing.T) {
	h := NewHealthCheck(NewCollector(), "1.2.3")
	h.AddCheck("ok", func() error { return nil })

	resp := h.Check()
	if resp.Status != HealthStatusHealthy {
		t.Errorf("Status = %v, want healthy", resp.Status)
	}
	if resp.Checks["ok"].Status != HealthStatusHealthy {
		t.Errorf("check 'ok' status = %v, want healthy", resp.Checks["ok"].Status)
	}
}

func TestHealthCheckUnhealthyPropagates(t *testing.T) {
	h := NewHealthCheck(NewCollector(), "1.2.3")
	h.AddCheck("broken", func() error { return errors.New("database unreachable") })

	resp := h.Check()
	if resp.Status != HealthStatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", resp.Status)
	}
	if resp.Checks["broken"].Message != "database unreachable" {
		t.Errorf("check message = %q, want %q", resp.Checks["broken"].Message, "database unreachable")
	}
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	h := NewHealthCheck(NewCollector(), "1.2.3")
	h.AddCheck("broken", func() error { return errors.New("boom") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if resp.Status != HealthStatusUnhealthy {
		t.Errorf("decoded status = %v, want unhealthy", resp.Status)
	}
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	h := NewHealthCheck(NewCollector(), "1.2.3")
	h.AddCheck("broken", func() error { return errors.New("boom") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.LivenessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("liveness status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadinessHandlerReflectsChecks(t *testing.T) {
	h := NewHealthCheck(NewCollector(), "1.2.3")
	h.AddCheck("broken", func() error { return errors.New("boom") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.ReadinessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRegistryCheckPassesOnHealthyRegistry(t *testing.T) {
	c := NewCollector()
	check := RegistryCheck(c.Registry)
	if err := check(); err != nil {
		t.Errorf("RegistryCheck on a healthy registry = %v, want nil", err)
	}
}

func TestNewServerWiresEndpoints(t *testing.T) {
	s := NewServer(ServerConfig{Collector: NewCollector(), Version: "1.0.0"})

	for _, path := range []string{"/metrics", "/health", "/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		s.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusNotFound {
			t.Errorf("path %s should be wired, got 404", path)
		}
	}
}
