package kafka

import (
	"context"
	"time"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/interfaces"

	"github.com/segmentio/kafka-go"
)

type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer создает новый экземпляр продюсера Kafka.
// Ключ сообщения - SessionID, поэтому события одной сессии попадают в одну партицию.
func NewKafkaProducer(cfg *config.AppConfig) (interfaces.KafkaService, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Broker),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer}, nil
}

// Produce отправляет сообщение в Kafka
func (p *KafkaProducer) Produce(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx,
		kafka.Message{
			Key:   key,
			Value: value,
		},
	)
}

// Close закрывает соединение с Kafka
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
