package domain

import "time"

// LoginLog is an append-only audit row for authentication attempts. The
// service only ever inserts into login_logs; nothing reads it back.
type LoginLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"column:usuario_id;index" json:"usuario_id,omitempty"`
	Email     string    `gorm:"column:correo;size:150" json:"correo"`
	Success   bool      `gorm:"column:exitoso" json:"exitoso"`
	IPAddress string    `gorm:"column:ip_address;size:64" json:"ip_address"`
	UserAgent string    `gorm:"column:user_agent;size:512" json:"user_agent"`
	Message   string    `gorm:"column:mensaje;size:255" json:"mensaje"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (LoginLog) TableName() string { return "login_logs" }
