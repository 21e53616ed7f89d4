package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/telemetrix/esp32-backend/internal/domain"
)

func newReadingHarness() (*ReadingService, *inMemoryReadingRepo, *inMemorySettingRepo) {
	readings := &inMemoryReadingRepo{}
	settings := newInMemorySettingRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReadingService(readings, settings, logger), readings, settings
}

func TestIngestStoresPlausibleReading(t *testing.T) {
	svc, readings, _ := newReadingHarness()

	r := &domain.Reading{Temperature: 22.5, Humidity: 48, Gas: 310}
	if err := svc.Ingest(context.Background(), r); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(readings.readings) != 1 {
		t.Fatalf("expected 1 stored reading, got %d", len(readings.readings))
	}
	if readings.readings[0].DeviceID != domain.DefaultDeviceID {
		t.Fatalf("expected default device id, got %q", readings.readings[0].DeviceID)
	}
}

func TestIngestRejectsImplausibleValues(t *testing.T) {
	svc, readings, _ := newReadingHarness()

	cases := []domain.Reading{
		{Temperature: -200, Humidity: 50, Gas: 100},
		{Temperature: 22, Humidity: 150, Gas: 100},
		{Temperature: 22, Humidity: 50, Gas: -1},
	}
	for _, r := range cases {
		reading := r
		if err := svc.Ingest(context.Background(), &reading); !errors.Is(err, ErrReadingOutOfRange) {
			t.Fatalf("reading %+v: expected ErrReadingOutOfRange, got %v", r, err)
		}
	}
	if len(readings.readings) != 0 {
		t.Fatalf("rejected readings must not be stored, got %d", len(readings.readings))
	}
}

func TestIngestThresholdBreachStillStores(t *testing.T) {
	svc, readings, settings := newReadingHarness()

	if err := settings.Upsert(&domain.Setting{Key: SettingTemperatureMax, Value: "30"}); err != nil {
		t.Fatalf("seed threshold: %v", err)
	}

	hot := &domain.Reading{Temperature: 45, Humidity: 50, Gas: 100, DeviceID: "ESP32_002"}
	if err := svc.Ingest(context.Background(), hot); err != nil {
		t.Fatalf("ingest above threshold: %v", err)
	}
	if len(readings.readings) != 1 {
		t.Fatal("a reading above the alert threshold is still data")
	}
}

func TestStatsWindowParsing(t *testing.T) {
	svc, _, _ := newReadingHarness()

	for _, window := range []string{"", "1h", "24h", "7d", "30d"} {
		if _, err := svc.Stats("", window); err != nil {
			t.Fatalf("window %q: %v", window, err)
		}
	}
	if _, err := svc.Stats("", "90d"); err == nil {
		t.Fatal("expected unknown window to be rejected")
	}
}

func TestCleanupRequiresPositiveDays(t *testing.T) {
	svc, readings, _ := newReadingHarness()

	readings.readings = []domain.Reading{
		{ID: 1, RecordedAt: time.Now().Add(-72 * time.Hour)},
		{ID: 2, RecordedAt: time.Now()},
	}

	if _, err := svc.Cleanup(0); err == nil {
		t.Fatal("expected zero days to be rejected")
	}

	deleted, err := svc.Cleanup(1)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if len(readings.readings) != 1 {
		t.Fatalf("expected 1 remaining, got %d", len(readings.readings))
	}
}
