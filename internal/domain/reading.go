package domain

import "time"

const DefaultDeviceID = "ESP32_001"

// Reading is one sensor sample pushed by a device.
type Reading struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Temperature float64   `gorm:"column:temperatura;not null" json:"temperatura"`
	Humidity    float64   `gorm:"column:humedad;not null" json:"humedad"`
	Gas         float64   `gorm:"column:gas;not null" json:"gas"`
	DeviceID    string    `gorm:"column:esp32_id;size:50;index;not null" json:"esp32_id"`
	RecordedAt  time.Time `gorm:"column:fecha_registro;index;autoCreateTime" json:"fecha_registro"`
}

func (Reading) TableName() string { return "datos_sensores" }
