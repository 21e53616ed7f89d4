package domain

import "time"

// Session maps the sesiones table. A session is valid iff Active is true and
// ExpiresAt lies in the future; the table is the source of truth for
// revocation, independent of the signed token's own expiry.
type Session struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	UserID       uint      `gorm:"column:usuario_id;index;not null" json:"usuario_id"`
	Token        string    `gorm:"column:token;size:512;uniqueIndex;not null" json:"-"`
	RefreshToken *string   `gorm:"column:refresh_token;size:512;index" json:"-"`
	ExpiresAt    time.Time `gorm:"column:fecha_expiracion;index;not null" json:"fecha_expiracion"`
	Active       bool      `gorm:"column:activa;not null" json:"activa"`
	IPAddress    string    `gorm:"column:ip_address;size:64" json:"ip_address,omitempty"`
	UserAgent    string    `gorm:"column:user_agent;size:512" json:"user_agent,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Session) TableName() string { return "sesiones" }
