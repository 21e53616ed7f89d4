package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/observability"
)

// LoginLogRepository is append-only audit storage for authentication
// attempts, successful or not.
type LoginLogRepository interface {
	Append(entry *domain.LoginLog) error
}

type GormLoginLogRepository struct{ db *gorm.DB }

func NewLoginLogRepository(db *gorm.DB) LoginLogRepository { return &GormLoginLogRepository{db: db} }

func (r *GormLoginLogRepository) Append(entry *domain.LoginLog) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_log", "append", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_log", "append", "success")
	return nil
}
