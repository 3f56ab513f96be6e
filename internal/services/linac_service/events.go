package linac_service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/pkg/sequencer"
)

const (
	eventBuffer    = 256
	produceTimeout = 5 * time.Second
)

type sessionEvent struct {
	sessionID string
	machine   string
	event     sequencer.Event
}

// EventDispatcher доставляет события сессий в Kafka и MQTT и пишет историю
// доставки полей. Хук сессии только кладет событие в буфер: рабочие циклы
// сессии не ждут брокеров.
type EventDispatcher struct {
	producer   interfaces.KafkaService
	mqtt       interfaces.MqttService
	deliveries interfaces.DeliveryRepository
	prefix     string
	logger     *logging.Logger

	closeMu sync.RWMutex
	closed  bool
	events  chan sessionEvent
	wg      sync.WaitGroup

	mu      sync.Mutex
	started map[string]time.Time // sessionID -> начало текущего поля
}

func NewEventDispatcher(cfg *config.AppConfig, producer interfaces.KafkaService, mqtt interfaces.MqttService, deliveries interfaces.DeliveryRepository, logger *logging.Logger) *EventDispatcher {
	d := &EventDispatcher{
		producer:   producer,
		mqtt:       mqtt,
		deliveries: deliveries,
		prefix:     cfg.MQTT.TopicPrefix,
		logger:     logger.WithPrefix("EVENTS"),
		events:     make(chan sessionEvent, eventBuffer),
		started:    make(map[string]time.Time),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// Hook возвращает хук для сессии. При переполненном буфере или после Close
// событие отбрасывается.
func (d *EventDispatcher) Hook(sessionID, machine string) sequencer.Hook {
	return func(e sequencer.Event) {
		d.closeMu.RLock()
		defer d.closeMu.RUnlock()
		if d.closed {
			return
		}
		select {
		case d.events <- sessionEvent{sessionID: sessionID, machine: machine, event: e}:
		default:
			d.logger.Warn("Event buffer is full, event dropped", "sessionID", sessionID, "kind", e.Kind)
		}
	}
}

func (d *EventDispatcher) loop() {
	defer d.wg.Done()
	for se := range d.events {
		d.handle(se)
	}
}

func (d *EventDispatcher) handle(se sessionEvent) {
	d.record(se)

	msg := ToLinacEvent(se.sessionID, se.machine, se.event)
	data, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("Failed to serialize event", "sessionID", se.sessionID, "error", err)
		return
	}

	if d.producer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), produceTimeout)
		err := d.producer.Produce(ctx, []byte(se.sessionID), data)
		cancel()
		if err != nil {
			d.logger.Error("Failed to send event to Kafka", "sessionID", se.sessionID, "kind", msg.Kind, "error", err)
		} else {
			d.logger.Debug("Event sent to Kafka", "sessionID", se.sessionID, "kind", msg.Kind)
		}
	}

	if d.mqtt != nil {
		if err := d.mqtt.Publish(d.topic(se, msg.Kind), data); err != nil {
			d.logger.Warn("Failed to publish event to MQTT", "sessionID", se.sessionID, "kind", msg.Kind, "error", err)
		}
	}
}

func (d *EventDispatcher) topic(se sessionEvent, kind string) string {
	return d.prefix + "/" + se.machine + "/" + se.sessionID + "/" + kind
}

// record сохраняет итог доставки поля.
func (d *EventDispatcher) record(se sessionEvent) {
	e := se.event
	switch e.Kind {
	case sequencer.EventFieldStarted:
		d.mu.Lock()
		d.started[se.sessionID] = e.Time
		d.mu.Unlock()
		return
	case sequencer.EventDisconnected:
		d.mu.Lock()
		delete(d.started, se.sessionID)
		d.mu.Unlock()
		return
	case sequencer.EventFieldDelivered, sequencer.EventFieldFailed:
	default:
		return
	}
	if d.deliveries == nil || e.Field == nil {
		return
	}

	d.mu.Lock()
	startedAt, ok := d.started[se.sessionID]
	delete(d.started, se.sessionID)
	d.mu.Unlock()
	if !ok {
		startedAt = e.Time
	}

	rec := &entities.DeliveryRecord{
		ID:          uuid.New().String(),
		SessionID:   se.sessionID,
		MachineName: se.machine,
		FieldName:   e.Field.Name,
		Filename:    e.Field.Filename,
		Index:       e.Index,
		Result:      entities.DeliveryDelivered,
		StartedAt:   startedAt,
		FinishedAt:  e.Time,
	}
	if e.Kind == sequencer.EventFieldFailed {
		rec.Result = entities.DeliveryFailed
		if e.Err != nil {
			rec.Error = e.Err.Error()
		}
	}
	if err := d.deliveries.Create(rec); err != nil {
		d.logger.Error("Failed to save delivery record", "sessionID", se.sessionID, "field", rec.FieldName, "error", err)
	}
}

// Close дожидается обработки буферизованных событий.
func (d *EventDispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.closeMu.Unlock()
	d.wg.Wait()
}

// ToLinacEvent переводит событие сессии во внешнее представление.
func ToLinacEvent(sessionID, machine string, e sequencer.Event) models.LinacEvent {
	out := models.LinacEvent{
		SessionID:   sessionID,
		MachineName: machine,
		Kind:        string(e.Kind),
		Timestamp:   e.Time,
	}
	switch e.Kind {
	case sequencer.EventState:
		code := int(e.State)
		out.State = e.State.String()
		out.StateCode = &code
	case sequencer.EventPhase:
		out.Phase = e.Phase.String()
		if e.Target != 0 {
			out.Target = e.Target.String()
		}
	}
	if e.Field != nil {
		idx := e.Index
		out.Field = e.Field.Name
		out.Filename = e.Field.Filename
		out.Index = &idx
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}
