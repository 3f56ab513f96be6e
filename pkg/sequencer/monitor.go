package sequencer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iwtcode/icomService/pkg/icom"
)

// DefaultQueueSize - емкость очереди уведомлений о состояниях.
const DefaultQueueSize = 64

// MonitorReader опрашивает канал VX и кладет новые состояния в очередь.
// Единственный производитель очереди; закрывает ее при завершении.
type MonitorReader struct {
	channel        icom.MonitorChannel
	address        string
	connectTimeout time.Duration
	pollTimeout    time.Duration
	log            Logger
	hook           Hook

	states chan icom.State

	mu      sync.Mutex
	handle  icom.Handle
	current icom.State
}

// NewMonitorReader создает читателя с очередью заданной емкости.
func NewMonitorReader(channel icom.MonitorChannel, address string, connectTimeout, pollTimeout time.Duration, queueSize int, log Logger, hook Hook) *MonitorReader {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = nopLogger{}
	}
	return &MonitorReader{
		channel:        channel,
		address:        address,
		connectTimeout: connectTimeout,
		pollTimeout:    pollTimeout,
		log:            log,
		hook:           hook,
		states:         make(chan icom.State, queueSize),
		current:        icom.StateUnknown,
	}
}

// States возвращает очередь уведомлений. Закрыта - связь с VX потеряна.
func (r *MonitorReader) States() <-chan icom.State {
	return r.states
}

// Current возвращает последнее полученное состояние.
func (r *MonitorReader) Current() icom.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Connect открывает канал VX.
func (r *MonitorReader) Connect() error {
	r.log.Info("VX connecting", "address", r.address)
	h, err := r.channel.Connect(r.address, r.connectTimeout)
	if err != nil {
		r.log.Error("Unable to establish VX connection", "address", r.address, "error", err)
		return &ChannelError{Channel: ChannelMonitor, Op: "connect", Err: err}
	}
	r.mu.Lock()
	r.handle = h
	r.mu.Unlock()
	r.log.Info("VX connection established", "handle", h)
	return nil
}

// Run опрашивает канал до отмены ctx или потери связи. Очередь закрывается
// при выходе в любом случае.
func (r *MonitorReader) Run(ctx context.Context) error {
	defer close(r.states)

	r.mu.Lock()
	h := r.handle
	r.mu.Unlock()
	if h <= 0 {
		return &ChannelError{Channel: ChannelMonitor, Op: "run", Err: ErrNotConnected}
	}

	last := icom.State(-1)
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := r.channel.WaitForMessage(h, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Error("VX connection lost", "error", err)
			return &ChannelError{Channel: ChannelMonitor, Op: "wait for message", Err: err}
		}
		if msg == 0 {
			continue
		}

		state, err := r.channel.State(msg)
		if err != nil || !state.Valid() {
			r.log.Warn("Invalid VX state", "message", msg, "state", int(state), "error", err)
		} else if state != last {
			last = state
			if !r.publish(ctx, state) {
				r.release(msg)
				return nil
			}
		}
		r.release(msg)
	}
}

func (r *MonitorReader) publish(ctx context.Context, s icom.State) bool {
	r.mu.Lock()
	r.current = s
	r.mu.Unlock()

	r.log.Debug("New VX state", "state", s.String(), "code", int(s))
	r.hook.emit(Event{Kind: EventState, State: s})

	select {
	case r.states <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *MonitorReader) release(msg icom.Message) {
	if err := r.channel.DeleteMessage(msg); err != nil {
		r.log.Warn("Failed to delete VX message", "message", msg, "error", err)
	}
}

// Close закрывает канал VX. Вызывать после завершения Run.
func (r *MonitorReader) Close() error {
	r.mu.Lock()
	h := r.handle
	r.handle = 0
	r.mu.Unlock()
	if h <= 0 {
		return nil
	}
	r.log.Info("Closing VX connection")
	if err := r.channel.Disconnect(h); err != nil && !errors.Is(err, icom.ErrNotConnected) {
		return &ChannelError{Channel: ChannelMonitor, Op: "disconnect", Err: err}
	}
	return nil
}
