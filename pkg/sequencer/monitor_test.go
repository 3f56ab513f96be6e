package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwtcode/icomService/pkg/icom"
)

// scriptedMonitor отдает состояния по списку; после конца списка
// возвращает ошибку связи, если lose, иначе пустые ожидания.
type scriptedMonitor struct {
	mu       sync.Mutex
	script   []icom.State
	lose     bool
	next     icom.Message
	pending  map[icom.Message]icom.State
	deleted  int
	closed   bool
	connects int
}

func newScriptedMonitor(lose bool, states ...icom.State) *scriptedMonitor {
	return &scriptedMonitor{script: states, lose: lose, pending: map[icom.Message]icom.State{}}
}

func (m *scriptedMonitor) Connect(address string, timeout time.Duration) (icom.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	return 7, nil
}

func (m *scriptedMonitor) WaitForMessage(h icom.Handle, timeout time.Duration) (icom.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.script) == 0 {
		if m.lose {
			return 0, &icom.CallError{Op: "WaitForMessage", Code: icom.ResultNotConnected}
		}
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		m.mu.Lock()
		return 0, nil
	}
	s := m.script[0]
	m.script = m.script[1:]
	m.next++
	m.pending[m.next] = s
	return m.next, nil
}

func (m *scriptedMonitor) State(msg icom.Message) (icom.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pending[msg]
	if !ok {
		return icom.StateUnknown, errors.New("unknown message")
	}
	return s, nil
}

func (m *scriptedMonitor) DeleteMessage(msg icom.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, msg)
	m.deleted++
	return nil
}

func (m *scriptedMonitor) Disconnect(h icom.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func drain(t *testing.T, ch <-chan icom.State) []icom.State {
	t.Helper()
	var out []icom.State
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s)
		case <-timeout:
			t.Fatal("states channel was not closed")
			return out
		}
	}
}

func TestMonitorReaderDedupAndLoss(t *testing.T) {
	mon := newScriptedMonitor(true,
		icom.StatePreparatory,
		icom.StatePreparatory,
		icom.StateConfirmSettings,
		icom.StateConfirmSettings,
		icom.StateReadyToStart,
	)
	r := NewMonitorReader(mon, "127.0.0.1", time.Second, 10*time.Millisecond, 16, nil, nil)
	require.NoError(t, r.Connect())

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	states := drain(t, r.States())
	assert.Equal(t, []icom.State{icom.StatePreparatory, icom.StateConfirmSettings, icom.StateReadyToStart}, states)

	err := <-errCh
	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, ChannelMonitor, chErr.Channel)
	assert.True(t, errors.Is(err, icom.ErrNotConnected))
	assert.True(t, IsDisconnected(err))

	assert.Equal(t, icom.StateReadyToStart, r.Current())
	// каждое сообщение удалено, включая повторы
	assert.Equal(t, 5, mon.deleted)
	assert.Empty(t, mon.pending)

	require.NoError(t, r.Close())
	assert.True(t, mon.closed)
}

func TestMonitorReaderSkipsInvalidState(t *testing.T) {
	mon := newScriptedMonitor(true, icom.StatePreparatory, icom.State(99), icom.StatePreparatory)
	r := NewMonitorReader(mon, "127.0.0.1", time.Second, time.Millisecond, 4, nil, nil)
	require.NoError(t, r.Connect())

	go func() { _ = r.Run(context.Background()) }()
	assert.Equal(t, []icom.State{icom.StatePreparatory}, drain(t, r.States()))
}

func TestMonitorReaderStopsOnContext(t *testing.T) {
	mon := newScriptedMonitor(false, icom.StateFieldTerminated)
	r := NewMonitorReader(mon, "127.0.0.1", time.Second, time.Millisecond, 4, nil, nil)
	require.NoError(t, r.Connect())

	var events []Event
	var mu sync.Mutex
	r.hook = func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	assert.Equal(t, icom.StateFieldTerminated, <-r.States())
	cancel()
	require.NoError(t, <-errCh)
	_, ok := <-r.States()
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, EventState, events[0].Kind)
	assert.Equal(t, icom.StateFieldTerminated, events[0].State)
}

func TestMonitorReaderRunWithoutConnect(t *testing.T) {
	r := NewMonitorReader(newScriptedMonitor(false), "127.0.0.1", time.Second, time.Millisecond, 1, nil, nil)
	err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	_, ok := <-r.States()
	assert.False(t, ok)
}
