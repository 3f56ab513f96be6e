package entities

import "time"

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// LinacConnection - сохраненное подключение к LINAC. Hostname - узел,
// с которого оно создано; при старте восстанавливаются подключения этого узла.
type LinacConnection struct {
	SessionID   string    `gorm:"primaryKey;not null" json:"session_id"`
	Hostname    string    `gorm:"not null;index" json:"hostname"`
	IP          string    `gorm:"not null;unique" json:"ip"`
	MachineName string    `gorm:"not null" json:"machine_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Status      string    `gorm:"not null" json:"status"` // connected / disconnected
}
