package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// okChecker — заглушка ReadinessChecker.
type okChecker struct {
	status  string
	message string
}

func (c okChecker) CheckReady() (string, string) {
	return c.status, c.message
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	h.HealthLive(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Статус = %d, хотели 200", w.Code)
	}
	var resp struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "ok" || resp.Service != "audio-store" {
		t.Errorf("Ответ: status=%q service=%q", resp.Status, resp.Service)
	}
}

func TestHealthReady_OK(t *testing.T) {
	h := NewHealthHandler(okChecker{status: "ok"}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.HealthReady(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Статус = %d, хотели 200, тело: %s", w.Code, w.Body.String())
	}
}

func TestHealthReady_PGFail(t *testing.T) {
	h := NewHealthHandler(okChecker{status: "fail", message: "нет соединения"}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.HealthReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Статус = %d, хотели 503", w.Code)
	}
}

func TestHealthReady_NilChecker(t *testing.T) {
	h := NewHealthHandler(nil, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.HealthReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Статус = %d, хотели 503", w.Code)
	}
}

func TestHealthReady_BadDataDir(t *testing.T) {
	h := NewHealthHandler(okChecker{status: "ok"}, "/nonexistent/data/dir")

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.HealthReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Статус = %d, хотели 503", w.Code)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		statuses []string
		want     string
	}{
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{[]string{"fail"}, "fail"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.statuses...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, хотели %q", tt.statuses, got, tt.want)
		}
	}
}
