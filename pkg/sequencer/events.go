package sequencer

import (
	"time"

	"github.com/iwtcode/icomService/pkg/icom"
)

// EventKind - тип события сессии.
type EventKind string

const (
	EventConnected      EventKind = "connected"
	EventDisconnected   EventKind = "disconnected"
	EventPhase          EventKind = "phase"
	EventState          EventKind = "state"
	EventFieldStarted   EventKind = "field_started"
	EventFieldDelivered EventKind = "field_delivered"
	EventFieldFailed    EventKind = "field_failed"
	EventReposition     EventKind = "reposition"
)

// Event - событие для наблюдателей (журнал, брокеры, БД).
// Хук вызывается синхронно из рабочих циклов и не должен блокироваться.
type Event struct {
	Kind   EventKind
	Time   time.Time
	Phase  Phase
	State  icom.State
	Target icom.State
	Field  *Field
	Index  int
	Err    error
}

// Hook получает события сессии.
type Hook func(Event)

func (h Hook) emit(e Event) {
	if h == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h(e)
}
