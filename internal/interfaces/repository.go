package interfaces

import (
	"github.com/iwtcode/icomService/internal/domain/entities"
)

// LinacConnectionRepository определяет контракт для работы с сохраненными подключениями в БД
type LinacConnectionRepository interface {
	Create(conn *entities.LinacConnection) error
	GetByIP(ip string) (*entities.LinacConnection, error)
	GetBySessionID(sessionID string) (*entities.LinacConnection, error)
	GetByHostname(hostname string) ([]entities.LinacConnection, error)
	UpdateStatus(sessionID, status string) error
	Delete(sessionID string) error
}

// DeliveryRepository хранит историю доставки полей
type DeliveryRepository interface {
	Create(record *entities.DeliveryRecord) error
	ListBySession(sessionID string, limit int) ([]entities.DeliveryRecord, error)
}
