package interfaces

import (
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
)

// LinacService - это агрегирующий интерфейс для всей бизнес-логики.
type LinacService interface {
	ConnectionManager
	PlaylistManager
	SequenceCatalog
	PlanConverter
}

// ConnectionManager определяет контракт для управления пулом сессий LINAC.
type ConnectionManager interface {
	CreateConnection(req models.ConnectionRequest) (*models.ConnectionInfo, error)
	RestoreConnection(conn entities.LinacConnection) (*models.ConnectionInfo, error)
	GetConnection(sessionID string) (*models.ConnectionInfo, bool)
	GetAllConnections() []*models.ConnectionInfo
	DeleteConnection(sessionID string) error
	CloseAll()
}

// PlaylistManager определяет контракт для очереди полей сессии.
type PlaylistManager interface {
	GetPlaylist(sessionID string) (*models.PlaylistInfo, error)
	EnqueueFiles(req models.FilesRequest) (*models.PlaylistInfo, error)
	StartSequence(req models.SequenceRequest) (*models.PlaylistInfo, error)
	Control(sessionID, action string) (*models.PlaylistInfo, error)
}

// SequenceCatalog определяет контракт для каталога последовательностей.
type SequenceCatalog interface {
	Sequences() []models.SequenceGroup
	Sequence(name string) (models.Sequence, bool)
}

// PlanConverter определяет контракт для конвертации планов.
type PlanConverter interface {
	ConvertPlan(req models.ConvertRequest) (*models.ConvertResult, error)
}
