package usecases

import "github.com/iwtcode/icomService/internal/interfaces"

// UseCases - агрегатор всех use case интерфейсов
type UseCases struct {
	interfaces.Usecases
}

// NewUsecases - конструктор для UseCases
func NewUsecases(
	linacSvc interfaces.LinacService,
	deliveries interfaces.DeliveryRepository,
) interfaces.Usecases {
	return NewUsecase(linacSvc, deliveries)
}
