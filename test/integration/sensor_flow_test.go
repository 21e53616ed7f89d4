package integration

import (
	"encoding/json"
	"net/http"
	"testing"
)

func ingestReading(t *testing.T, b *testBackend, device string, temp, hum, gas float64) {
	t.Helper()
	resp, env := b.doJSON(t, http.MethodPost, "/api/sensors/", "", map[string]any{
		"temperatura": temp,
		"humedad":     hum,
		"gas":         gas,
		"esp32_id":    device,
	})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("ingest: status=%d success=%v", resp.StatusCode, env.Success)
	}
}

func TestSensorIngestListAndLatest(t *testing.T) {
	b := newTestBackend(t)

	ingestReading(t, b, "ESP32_001", 21.5, 45, 300)
	ingestReading(t, b, "ESP32_001", 23.0, 47, 320)
	ingestReading(t, b, "ESP32_002", 19.0, 52, 280)

	resp, env := b.doJSON(t, http.MethodGet, "/api/sensors/?esp32_id=ESP32_001", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var page struct {
		Items []struct {
			DeviceID string `json:"esp32_id"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode list payload: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 readings for ESP32_001, got total=%d items=%d", page.Total, len(page.Items))
	}

	resp, env = b.doJSON(t, http.MethodGet, "/api/sensors/latest?esp32_id=ESP32_001", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest: expected 200, got %d", resp.StatusCode)
	}
	var latest struct {
		Temperature float64 `json:"temperatura"`
	}
	if err := json.Unmarshal(env.Data, &latest); err != nil {
		t.Fatalf("decode latest payload: %v", err)
	}
	if latest.Temperature != 23.0 {
		t.Fatalf("latest must return the newest sample, got temperatura=%v", latest.Temperature)
	}
}

func TestSensorLatestEmptyIs404(t *testing.T) {
	b := newTestBackend(t)

	resp, env := b.doJSON(t, http.MethodGet, "/api/sensors/latest", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with no readings, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %+v", env.Error)
	}
}

func TestSensorIngestRejectsOutOfRange(t *testing.T) {
	b := newTestBackend(t)

	resp, env := b.doJSON(t, http.MethodPost, "/api/sensors/", "", map[string]any{
		"temperatura": 200.0,
		"humedad":     45.0,
		"gas":         300.0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out-of-range sample: expected 400, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %+v", env.Error)
	}
}

func TestSensorStats(t *testing.T) {
	b := newTestBackend(t)
	ingestReading(t, b, "ESP32_001", 20, 40, 300)
	ingestReading(t, b, "ESP32_001", 30, 60, 500)

	resp, env := b.doJSON(t, http.MethodGet, "/api/sensors/stats?esp32_id=ESP32_001&periodo=24h", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats struct {
		Count   int64    `json:"count"`
		AvgTemp *float64 `json:"avgTemperatura"`
		MaxGas  *float64 `json:"maxGas"`
	}
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats payload: %v", err)
	}
	if stats.Count != 2 {
		t.Fatalf("expected count 2, got %d", stats.Count)
	}
	if stats.AvgTemp == nil || *stats.AvgTemp != 25 {
		t.Fatalf("expected avgTemperatura 25, got %v", stats.AvgTemp)
	}
	if stats.MaxGas == nil || *stats.MaxGas != 500 {
		t.Fatalf("expected maxGas 500, got %v", stats.MaxGas)
	}

	resp, _ = b.doJSON(t, http.MethodGet, "/api/sensors/stats?periodo=2y", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus periodo: expected 400, got %d", resp.StatusCode)
	}
}

func TestSensorCleanupIsAdminOnly(t *testing.T) {
	b := newTestBackend(t)
	b.register(t, "Ana Torres", "ana@example.com", "segura-1234")
	user := b.login(t, "ana@example.com", "segura-1234")

	resp, _ := b.doJSON(t, http.MethodDelete, "/api/sensors/cleanup", user.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("usuario cleanup: expected 403, got %d", resp.StatusCode)
	}

	b.promoteToAdmin(t, "ana@example.com")
	resp, env := b.doJSON(t, http.MethodDelete, "/api/sensors/cleanup?dias=30", user.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin cleanup: expected 200, got %d", resp.StatusCode)
	}
	var payload map[string]int64
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode cleanup payload: %v", err)
	}
	if _, ok := payload["deleted"]; !ok {
		t.Fatalf("cleanup payload missing deleted count: %v", payload)
	}
}
