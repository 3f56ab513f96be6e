package delivery

import (
	"github.com/iwtcode/icomService/internal/domain/entities"
)

func (r *DeliveryRepositoryImpl) Create(record *entities.DeliveryRecord) error {
	return r.db.Create(record).Error
}

// ListBySession возвращает последние записи сессии, новые первыми. limit <= 0 - без ограничения
func (r *DeliveryRepositoryImpl) ListBySession(sessionID string, limit int) ([]entities.DeliveryRecord, error) {
	var records []entities.DeliveryRecord
	q := r.db.Where("session_id = ?", sessionID).Order("finished_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
