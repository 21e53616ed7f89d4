package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/repository"
)

var ErrReadingOutOfRange = errors.New("reading out of range")

// Physical plausibility bounds for the sensors on the board. Gas is a raw
// 10-bit ADC value. Values outside are treated as transmission garbage, not
// data.
const (
	minTemperature = -50.0
	maxTemperature = 100.0
	minHumidity    = 0.0
	maxHumidity    = 100.0
	minGas         = 0.0
	maxGas         = 1023.0
)

// Alert threshold keys in the configuracion table.
const (
	SettingTemperatureMax = "temperatura_max"
	SettingHumidityMax    = "humedad_max"
	SettingGasMax         = "gas_max"
)

type ReadingService struct {
	readings repository.ReadingRepository
	settings repository.SettingRepository
	logger   *slog.Logger
}

func NewReadingService(readings repository.ReadingRepository, settings repository.SettingRepository, logger *slog.Logger) *ReadingService {
	return &ReadingService{readings: readings, settings: settings, logger: logger}
}

// Ingest validates and stores one reading from a device. Threshold breaches
// are logged as alerts but never reject the reading; the data point is real
// even when it is alarming.
func (s *ReadingService) Ingest(ctx context.Context, reading *domain.Reading) error {
	if err := validateRange(reading); err != nil {
		observability.RecordSensorIngest(reading.DeviceID, "rejected")
		return err
	}
	if reading.DeviceID == "" {
		reading.DeviceID = domain.DefaultDeviceID
	}

	if err := s.readings.Insert(reading); err != nil {
		observability.RecordSensorIngest(reading.DeviceID, "error")
		return err
	}
	observability.RecordSensorIngest(reading.DeviceID, "success")

	s.checkThreshold(ctx, reading.DeviceID, "temperatura", reading.Temperature, SettingTemperatureMax)
	s.checkThreshold(ctx, reading.DeviceID, "humedad", reading.Humidity, SettingHumidityMax)
	s.checkThreshold(ctx, reading.DeviceID, "gas", reading.Gas, SettingGasMax)
	return nil
}

func (s *ReadingService) List(page repository.PageRequest, filter repository.ReadingFilter) (*repository.PageResult[domain.Reading], error) {
	return s.readings.ListPaged(page, filter)
}

func (s *ReadingService) Latest(deviceID string) (*domain.Reading, error) {
	return s.readings.Latest(deviceID)
}

// Stats aggregates readings over a named window: 1h, 24h, 7d or 30d.
func (s *ReadingService) Stats(deviceID, window string) (*repository.ReadingStats, error) {
	d, err := parseWindow(window)
	if err != nil {
		return nil, err
	}
	return s.readings.Stats(repository.ReadingFilter{
		DeviceID: deviceID,
		Since:    time.Now().Add(-d),
	})
}

// Cleanup deletes readings older than the given number of days.
func (s *ReadingService) Cleanup(days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("cleanup: days must be positive, got %d", days)
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	return s.readings.DeleteOlderThan(cutoff)
}

func (s *ReadingService) checkThreshold(ctx context.Context, deviceID, metric string, value float64, key string) {
	setting, err := s.settings.Get(key)
	if err != nil {
		// No threshold configured means no alerting for this metric.
		return
	}
	limit, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "unparseable threshold value",
			"key", key, "value", setting.Value)
		return
	}
	if value > limit {
		s.logger.WarnContext(ctx, "sensor threshold exceeded",
			"device_id", deviceID,
			"metric", metric,
			"value", value,
			"limit", limit)
	}
}

func validateRange(r *domain.Reading) error {
	switch {
	case r.Temperature < minTemperature || r.Temperature > maxTemperature:
		return fmt.Errorf("%w: temperatura %.2f", ErrReadingOutOfRange, r.Temperature)
	case r.Humidity < minHumidity || r.Humidity > maxHumidity:
		return fmt.Errorf("%w: humedad %.2f", ErrReadingOutOfRange, r.Humidity)
	case r.Gas < minGas || r.Gas > maxGas:
		return fmt.Errorf("%w: gas %.2f", ErrReadingOutOfRange, r.Gas)
	}
	return nil
}

func parseWindow(window string) (time.Duration, error) {
	switch window {
	case "", "24h":
		return 24 * time.Hour, nil
	case "1h":
		return time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	case "30d":
		return 30 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown stats window %q", window)
}
