package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/observability"
)

var ErrSettingNotFound = errors.New("setting not found")

// SettingRepository backs the configuracion key/value table used for
// runtime-tunable thresholds.
type SettingRepository interface {
	Get(key string) (*domain.Setting, error)
	Upsert(setting *domain.Setting) error
	All() ([]domain.Setting, error)
}

type GormSettingRepository struct{ db *gorm.DB }

func NewSettingRepository(db *gorm.DB) SettingRepository { return &GormSettingRepository{db: db} }

func (r *GormSettingRepository) Get(key string) (*domain.Setting, error) {
	var s domain.Setting
	err := r.db.Where("clave = ?", key).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "setting", "get", "not_found")
			return nil, ErrSettingNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "setting", "get", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "setting", "get", "success")
	return &s, nil
}

func (r *GormSettingRepository) Upsert(setting *domain.Setting) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "clave"}},
		DoUpdates: clause.AssignmentColumns([]string{"valor", "descripcion"}),
	}).Create(setting).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "setting", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "setting", "upsert", "success")
	return nil
}

func (r *GormSettingRepository) All() ([]domain.Setting, error) {
	var settings []domain.Setting
	err := r.db.Order("clave").Find(&settings).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "setting", "all", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "setting", "all", "success")
	return settings, nil
}
