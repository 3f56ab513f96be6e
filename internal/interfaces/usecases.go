package interfaces

import (
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
)

// Usecases - это агрегирующий интерфейс для всех use cases
type Usecases interface {
	CreateConnection(req models.ConnectionRequest) (*models.ConnectionInfo, error)
	RestoreConnection(conn entities.LinacConnection) (*models.ConnectionInfo, error)
	GetConnection(sessionID string) (*models.ConnectionInfo, error)
	GetAllConnections() []*models.ConnectionInfo
	DeleteConnection(sessionID string) error
	GetPlaylist(sessionID string) (*models.PlaylistInfo, error)
	EnqueueFiles(req models.FilesRequest) (*models.PlaylistInfo, error)
	StartSequence(req models.SequenceRequest) (*models.PlaylistInfo, error)
	Control(sessionID, action string) (*models.PlaylistInfo, error)
	GetSequences() []models.SequenceGroup
	ConvertPlan(req models.ConvertRequest) (*models.ConvertResult, error)
	GetDeliveries(sessionID string, limit int) ([]entities.DeliveryRecord, error)
}
