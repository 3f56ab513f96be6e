package entities

import "time"

const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// DeliveryRecord - итог доставки одного поля.
type DeliveryRecord struct {
	ID          string    `gorm:"primaryKey;not null" json:"id"`
	SessionID   string    `gorm:"not null;index" json:"session_id"`
	MachineName string    `json:"machine_name"`
	FieldName   string    `gorm:"not null" json:"field_name"`
	Filename    string    `json:"filename"`
	Index       int       `json:"index"`
	Result      string    `gorm:"not null" json:"result"` // delivered / failed
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `gorm:"index" json:"finished_at"`
}
