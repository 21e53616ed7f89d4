package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/observability"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepository interface {
	Create(u *domain.User) error
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	FindActiveByEmail(email string) (*domain.User, error)
	Update(u *domain.User) error
	UpdatePassword(id uint, hash string) error
	SetActive(id uint, active bool) error
	TouchLastAccess(id uint) error
	ListPaged(page PageRequest, search string) (*PageResult[domain.User], error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) Create(u *domain.User) error {
	err := r.db.Create(u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			observability.RecordRepositoryOperation(context.Background(), "user", "create", "conflict")
			return ErrEmailTaken
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	return r.finish(&u, err, "find_by_id")
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("correo = ?", email).First(&u).Error
	return r.finish(&u, err, "find_by_email")
}

func (r *GormUserRepository) FindActiveByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("correo = ? AND activo = ?", email, true).First(&u).Error
	return r.finish(&u, err, "find_active_by_email")
}

func (r *GormUserRepository) finish(u *domain.User, err error, op string) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", op, "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", op, "success")
	return u, nil
}

func (r *GormUserRepository) Update(u *domain.User) error {
	err := r.db.Save(u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			observability.RecordRepositoryOperation(context.Background(), "user", "update", "conflict")
			return ErrEmailTaken
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update", "success")
	return nil
}

func (r *GormUserRepository) UpdatePassword(id uint, hash string) error {
	return r.updateColumns(id, map[string]any{"contrasena_hash": hash}, "update_password")
}

func (r *GormUserRepository) SetActive(id uint, active bool) error {
	return r.updateColumns(id, map[string]any{"activo": active}, "set_active")
}

func (r *GormUserRepository) TouchLastAccess(id uint) error {
	now := time.Now()
	return r.updateColumns(id, map[string]any{"ultimo_acceso": &now}, "touch_last_access")
}

func (r *GormUserRepository) updateColumns(id uint, cols map[string]any, op string) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", op, "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", op, "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", op, "success")
	return nil
}

func (r *GormUserRepository) ListPaged(page PageRequest, search string) (*PageResult[domain.User], error) {
	page = normalizePageRequest(page)

	q := r.db.Model(&domain.User{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("nombre LIKE ? OR correo LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "error")
		return nil, err
	}

	var users []domain.User
	err := q.Order("fecha_registro DESC").
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&users).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "success")
	return &PageResult[domain.User]{
		Items:      users,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

// isUniqueViolation matches driver-level unique constraint errors that Gorm
// does not translate (sqlite and postgres phrase them differently).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
