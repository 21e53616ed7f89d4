package domain

// Setting is a key/value row in the configuracion table. Alert thresholds
// (temperatura_max, humedad_max, gas_max) live here.
type Setting struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Key         string  `gorm:"column:clave;size:100;uniqueIndex;not null" json:"clave"`
	Value       string  `gorm:"column:valor;size:255;not null" json:"valor"`
	Description *string `gorm:"column:descripcion;size:255" json:"descripcion,omitempty"`
}

func (Setting) TableName() string { return "configuracion" }
