package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "usuario"
)

// User maps the usuarios table. Column names follow the deployed schema,
// which predates this service.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"column:nombre;size:100;not null" json:"nombre"`
	Email        string     `gorm:"column:correo;size:150;uniqueIndex;not null" json:"correo"`
	PasswordHash string     `gorm:"column:contrasena_hash;size:255;not null" json:"-"`
	Role         string     `gorm:"column:rol;size:20;not null;default:usuario" json:"rol"`
	Active       bool       `gorm:"column:activo;not null" json:"activo"`
	RegisteredAt time.Time  `gorm:"column:fecha_registro;autoCreateTime" json:"fecha_registro"`
	LastAccessAt *time.Time `gorm:"column:ultimo_acceso" json:"ultimo_acceso,omitempty"`
}

func (User) TableName() string { return "usuarios" }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}
