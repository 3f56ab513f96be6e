package delivery

import (
	"github.com/iwtcode/icomService/internal/interfaces"
	"gorm.io/gorm"
)

type DeliveryRepositoryImpl struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) interfaces.DeliveryRepository {
	return &DeliveryRepositoryImpl{db: db}
}
