package linac_connection

import (
	"github.com/iwtcode/icomService/internal/interfaces"
	"gorm.io/gorm"
)

type LinacConnectionRepositoryImpl struct {
	db *gorm.DB
}

func NewLinacConnectionRepository(db *gorm.DB) interfaces.LinacConnectionRepository {
	return &LinacConnectionRepositoryImpl{db: db}
}
