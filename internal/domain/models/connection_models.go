package models

import "time"

// ConnectionRequest определяет структуру для нового запроса на подключение.
type ConnectionRequest struct {
	IP          string `json:"ip" binding:"required"` // "192.168.30.1"
	MachineName string `json:"machine_name"`          // пусто - имя из конфигурации
}

// SessionRequest определяет структуру для запросов, использующих SessionID.
type SessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ConnectionInfo представляет активное подключение в пуле.
type ConnectionInfo struct {
	SessionID    string    `json:"session_id"`
	IP           string    `json:"ip"`
	MachineName  string    `json:"machine_name"`
	Hostname     string    `json:"hostname"`
	CreatedAt    time.Time `json:"created_at"`
	Connected    bool      `json:"connected"`
	Status       string    `json:"status"`
	Phase        string    `json:"phase"`
	MachineState string    `json:"machine_state"`
	Error        string    `json:"error,omitempty"`
}
