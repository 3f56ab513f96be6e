package models

import "github.com/iwtcode/icomService/internal/domain/entities"

// ErrorResponse представляет стандартный ответ с ошибкой.
type ErrorResponse struct {
	Status string `json:"status" example:"error"`
	Error  struct {
		Code    int    `json:"code" example:"404"`
		Message string `json:"message" example:"Подключение не найдено"`
	} `json:"error"`
}

// MessageResponse представляет стандартный успешный ответ с сообщением.
type MessageResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message" example:"Playlist stopped"`
}

// CreateConnectionResponse представляет ответ при успешном создании подключения.
type CreateConnectionResponse struct {
	Status         string          `json:"status" example:"ok"`
	ConnectionInfo *ConnectionInfo `json:"connection_info"`
}

// GetConnectionsResponse представляет ответ со списком всех подключений.
type GetConnectionsResponse struct {
	Status      string            `json:"status" example:"ok"`
	PoolSize    int               `json:"pool_size" example:"1"`
	Connections []*ConnectionInfo `json:"connections"`
}

// PlaylistResponse представляет состояние очереди полей.
type PlaylistResponse struct {
	Status   string        `json:"status" example:"ok"`
	Playlist *PlaylistInfo `json:"playlist"`
}

// SequencesResponse представляет каталог последовательностей по типам.
type SequencesResponse struct {
	Status string          `json:"status" example:"ok"`
	Groups []SequenceGroup `json:"groups"`
}

// ConvertResponse представляет результат конвертации плана.
type ConvertResponse struct {
	Status string         `json:"status" example:"ok"`
	Result *ConvertResult `json:"result"`
}

// DeliveriesResponse представляет историю доставки полей.
type DeliveriesResponse struct {
	Status     string                    `json:"status" example:"ok"`
	Deliveries []entities.DeliveryRecord `json:"deliveries"`
}
