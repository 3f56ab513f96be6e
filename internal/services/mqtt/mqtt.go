package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/middleware/logging"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Publisher публикует события сессий в брокер MQTT.
type Publisher struct {
	client paho.Client
	qos    byte
	logger *logging.Logger
}

// nopPublisher используется, когда брокер не задан.
type nopPublisher struct{}

func (nopPublisher) Publish(string, []byte) error { return nil }
func (nopPublisher) Close() error                 { return nil }

// NewPublisher подключается к брокеру. Пустой адрес брокера отключает публикацию.
// Недоступный брокер не мешает старту: клиент переподключается сам.
func NewPublisher(cfg *config.AppConfig, logger *logging.Logger) interfaces.MqttService {
	log := logger.WithPrefix("MQTT")
	if cfg.MQTT.Broker == "" {
		log.Info("MQTT broker is not configured, publishing disabled")
		return nopPublisher{}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		log.Info("MQTT connection established", "broker", cfg.MQTT.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Warn("MQTT connection lost, reconnecting", "broker", cfg.MQTT.Broker, "error", err)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn("MQTT connection timeout, will keep retrying", "broker", cfg.MQTT.Broker)
	} else if err := token.Error(); err != nil {
		log.Warn("MQTT connection failed", "broker", cfg.MQTT.Broker, "error", err)
	}

	return &Publisher{client: client, qos: cfg.MQTT.QoS, logger: log}
}

// Publish отправляет сообщение и ждет подтверждения брокера.
func (p *Publisher) Publish(topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt not connected")
	}
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	p.logger.Debug("Event published", "topic", topic, "size", len(payload))
	return nil
}

// Close отключается от брокера.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
