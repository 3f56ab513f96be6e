package linac_connection

import (
	"github.com/iwtcode/icomService/internal/domain/entities"
	"gorm.io/gorm"
)

func (r *LinacConnectionRepositoryImpl) Create(conn *entities.LinacConnection) error {
	return r.db.Create(conn).Error
}

func (r *LinacConnectionRepositoryImpl) GetByIP(ip string) (*entities.LinacConnection, error) {
	var conn entities.LinacConnection
	err := r.db.Where("ip = ?", ip).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *LinacConnectionRepositoryImpl) GetBySessionID(sessionID string) (*entities.LinacConnection, error) {
	var conn entities.LinacConnection
	err := r.db.Where("session_id = ?", sessionID).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByHostname возвращает подключения, созданные с указанного узла
func (r *LinacConnectionRepositoryImpl) GetByHostname(hostname string) ([]entities.LinacConnection, error) {
	var conns []entities.LinacConnection
	if err := r.db.Where("hostname = ?", hostname).Order("created_at").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *LinacConnectionRepositoryImpl) UpdateStatus(sessionID, status string) error {
	result := r.db.Model(&entities.LinacConnection{}).Where("session_id = ?", sessionID).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *LinacConnectionRepositoryImpl) Delete(sessionID string) error {
	result := r.db.Where("session_id = ?", sessionID).Delete(&entities.LinacConnection{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
