package linac_service

import (
	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/middleware/logging"
)

type linacService struct {
	connMgr   *ConnectionManager
	playMgr   *PlaylistManager
	catalog   *Catalog
	converter *PlanConverter
}

func NewLinacService(cfg *config.AppConfig, repo interfaces.LinacConnectionRepository, dispatcher *EventDispatcher, catalog *Catalog, converter *PlanConverter, logger *logging.Logger) interfaces.LinacService {
	return newLinacService(cfg, NewChannelFactory(cfg), repo, dispatcher, catalog, converter, logger)
}

func newLinacService(cfg *config.AppConfig, channels ChannelFactory, repo interfaces.LinacConnectionRepository, hooks HookProvider, catalog *Catalog, converter *PlanConverter, logger *logging.Logger) *linacService {
	connectionManager := NewConnectionManager(cfg, channels, hooks, repo, logger)
	playlistManager := NewPlaylistManager(connectionManager, catalog, converter, logger)

	return &linacService{
		connMgr:   connectionManager,
		playMgr:   playlistManager,
		catalog:   catalog,
		converter: converter,
	}
}

// --- Реализация методов интерфейса LinacService ---

func (s *linacService) CreateConnection(req models.ConnectionRequest) (*models.ConnectionInfo, error) {
	return s.connMgr.CreateConnection(req)
}

func (s *linacService) RestoreConnection(conn entities.LinacConnection) (*models.ConnectionInfo, error) {
	return s.connMgr.RestoreConnection(conn)
}

func (s *linacService) GetConnection(sessionID string) (*models.ConnectionInfo, bool) {
	return s.connMgr.GetConnection(sessionID)
}

func (s *linacService) GetAllConnections() []*models.ConnectionInfo {
	return s.connMgr.GetAllConnections()
}

func (s *linacService) DeleteConnection(sessionID string) error {
	return s.connMgr.DeleteConnection(sessionID)
}

func (s *linacService) CloseAll() {
	s.connMgr.CloseAll()
}

func (s *linacService) GetPlaylist(sessionID string) (*models.PlaylistInfo, error) {
	return s.playMgr.GetPlaylist(sessionID)
}

func (s *linacService) EnqueueFiles(req models.FilesRequest) (*models.PlaylistInfo, error) {
	return s.playMgr.EnqueueFiles(req)
}

func (s *linacService) StartSequence(req models.SequenceRequest) (*models.PlaylistInfo, error) {
	return s.playMgr.StartSequence(req)
}

func (s *linacService) Control(sessionID, action string) (*models.PlaylistInfo, error) {
	return s.playMgr.Control(sessionID, action)
}

func (s *linacService) Sequences() []models.SequenceGroup {
	return s.catalog.Sequences()
}

func (s *linacService) Sequence(name string) (models.Sequence, bool) {
	return s.catalog.Sequence(name)
}

func (s *linacService) ConvertPlan(req models.ConvertRequest) (*models.ConvertResult, error) {
	return s.converter.ConvertPlan(req)
}
