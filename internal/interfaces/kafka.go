package interfaces

import (
	"context"
)

// KafkaService определяет контракт для отправки данных во внешние системы
type KafkaService interface {
	Produce(ctx context.Context, key, value []byte) error
	Close() error
}

// MqttService публикует события в брокер MQTT
type MqttService interface {
	Publish(topic string, payload []byte) error
	Close() error
}
