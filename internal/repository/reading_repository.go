package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/observability"
)

var ErrReadingNotFound = errors.New("reading not found")

// ReadingFilter narrows a listing of sensor rows. Zero values mean "no
// constraint".
type ReadingFilter struct {
	DeviceID string
	Since    time.Time
	Until    time.Time
}

// ReadingStats aggregates datos_sensores over a window.
type ReadingStats struct {
	Count          int64    `json:"count"`
	AvgTemperature *float64 `json:"avgTemperatura"`
	MinTemperature *float64 `json:"minTemperatura"`
	MaxTemperature *float64 `json:"maxTemperatura"`
	AvgHumidity    *float64 `json:"avgHumedad"`
	MinHumidity    *float64 `json:"minHumedad"`
	MaxHumidity    *float64 `json:"maxHumedad"`
	AvgGas         *float64 `json:"avgGas"`
	MinGas         *float64 `json:"minGas"`
	MaxGas         *float64 `json:"maxGas"`
}

type ReadingRepository interface {
	Insert(reading *domain.Reading) error
	ListPaged(page PageRequest, filter ReadingFilter) (*PageResult[domain.Reading], error)
	Latest(deviceID string) (*domain.Reading, error)
	Stats(filter ReadingFilter) (*ReadingStats, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type GormReadingRepository struct{ db *gorm.DB }

func NewReadingRepository(db *gorm.DB) ReadingRepository { return &GormReadingRepository{db: db} }

func (r *GormReadingRepository) Insert(reading *domain.Reading) error {
	err := r.db.Create(reading).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "reading", "insert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "reading", "insert", "success")
	return nil
}

func (r *GormReadingRepository) ListPaged(page PageRequest, filter ReadingFilter) (*PageResult[domain.Reading], error) {
	page = normalizePageRequest(page)
	q := r.applyFilter(r.db.Model(&domain.Reading{}), filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "reading", "list_paged", "error")
		return nil, err
	}

	var readings []domain.Reading
	err := q.Order("fecha_registro DESC").
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&readings).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "reading", "list_paged", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "reading", "list_paged", "success")
	return &PageResult[domain.Reading]{
		Items:      readings,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

func (r *GormReadingRepository) Latest(deviceID string) (*domain.Reading, error) {
	q := r.db.Model(&domain.Reading{})
	if deviceID != "" {
		q = q.Where("esp32_id = ?", deviceID)
	}
	var reading domain.Reading
	err := q.Order("fecha_registro DESC").Order("id DESC").First(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "reading", "latest", "not_found")
			return nil, ErrReadingNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "reading", "latest", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "reading", "latest", "success")
	return &reading, nil
}

func (r *GormReadingRepository) Stats(filter ReadingFilter) (*ReadingStats, error) {
	var stats ReadingStats
	err := r.applyFilter(r.db.Model(&domain.Reading{}), filter).
		Select(`COUNT(*) AS count,
			AVG(temperatura) AS avg_temperature, MIN(temperatura) AS min_temperature, MAX(temperatura) AS max_temperature,
			AVG(humedad) AS avg_humidity, MIN(humedad) AS min_humidity, MAX(humedad) AS max_humidity,
			AVG(gas) AS avg_gas, MIN(gas) AS min_gas, MAX(gas) AS max_gas`).
		Scan(&stats).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "reading", "stats", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "reading", "stats", "success")
	return &stats, nil
}

func (r *GormReadingRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("fecha_registro < ?", cutoff).Delete(&domain.Reading{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "reading", "delete_older_than", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "reading", "delete_older_than", "success")
	return res.RowsAffected, nil
}

func (r *GormReadingRepository) applyFilter(q *gorm.DB, filter ReadingFilter) *gorm.DB {
	if filter.DeviceID != "" {
		q = q.Where("esp32_id = ?", filter.DeviceID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("fecha_registro >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("fecha_registro <= ?", filter.Until)
	}
	return q
}
