package usecases

import (
	"fmt"

	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/services/linac_service"
)

// defaultDeliveriesLimit - сколько записей истории отдавать без явного limit.
const defaultDeliveriesLimit = 100

type Usecase struct {
	linacSvc   interfaces.LinacService
	deliveries interfaces.DeliveryRepository
}

func NewUsecase(linacSvc interfaces.LinacService, deliveries interfaces.DeliveryRepository) interfaces.Usecases {
	return &Usecase{
		linacSvc:   linacSvc,
		deliveries: deliveries,
	}
}

func (u *Usecase) CreateConnection(req models.ConnectionRequest) (*models.ConnectionInfo, error) {
	return u.linacSvc.CreateConnection(req)
}

func (u *Usecase) RestoreConnection(conn entities.LinacConnection) (*models.ConnectionInfo, error) {
	return u.linacSvc.RestoreConnection(conn)
}

func (u *Usecase) GetConnection(sessionID string) (*models.ConnectionInfo, error) {
	conn, found := u.linacSvc.GetConnection(sessionID)
	if !found {
		return nil, fmt.Errorf("%w: '%s' нет в активном пуле", linac_service.ErrSessionNotFound, sessionID)
	}
	return conn, nil
}

func (u *Usecase) GetAllConnections() []*models.ConnectionInfo {
	return u.linacSvc.GetAllConnections()
}

func (u *Usecase) DeleteConnection(sessionID string) error {
	return u.linacSvc.DeleteConnection(sessionID)
}

func (u *Usecase) GetPlaylist(sessionID string) (*models.PlaylistInfo, error) {
	return u.linacSvc.GetPlaylist(sessionID)
}

func (u *Usecase) EnqueueFiles(req models.FilesRequest) (*models.PlaylistInfo, error) {
	return u.linacSvc.EnqueueFiles(req)
}

func (u *Usecase) StartSequence(req models.SequenceRequest) (*models.PlaylistInfo, error) {
	return u.linacSvc.StartSequence(req)
}

func (u *Usecase) Control(sessionID, action string) (*models.PlaylistInfo, error) {
	return u.linacSvc.Control(sessionID, action)
}

func (u *Usecase) GetSequences() []models.SequenceGroup {
	return u.linacSvc.Sequences()
}

func (u *Usecase) ConvertPlan(req models.ConvertRequest) (*models.ConvertResult, error) {
	return u.linacSvc.ConvertPlan(req)
}

func (u *Usecase) GetDeliveries(sessionID string, limit int) ([]entities.DeliveryRecord, error) {
	if limit <= 0 {
		limit = defaultDeliveriesLimit
	}
	records, err := u.deliveries.ListBySession(sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить историю доставки сессии '%s': %w", sessionID, err)
	}
	return records, nil
}
