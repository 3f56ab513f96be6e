// Package sim - программная модель LINAC с каналами FX и VX. Используется
// сервисом, когда iCOMClient не собран, и в тестах.
package sim

import (
	"sync"
	"time"

	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/icom"
)

// Config задает поведение модели.
type Config struct {
	// StepDelay - пауза между переходами сценария облучения.
	StepDelay time.Duration
	// AutoStart переводит READY TO START дальше без вызова Start.
	AutoStart bool
	// Reject - код ошибки, который аппарат вернет на тег в отправленном поле.
	Reject map[efs.TagCode]int
	// FailConnect заставляет оба Connect вернуть CONNECTION_FAILED.
	FailConnect bool
	// Heartbeat повторяет текущее состояние, если за время ожидания переходов не было.
	Heartbeat bool
}

// Field - поле, принятое моделью.
type Field struct {
	Records []efs.Record
}

// Value возвращает значение тега в контрольной точке.
func (f Field) Value(code efs.TagCode, cp int) (string, bool) {
	for _, r := range f.Records {
		if r.Code == code && r.ControlPoint == cp {
			return r.Value, true
		}
	}
	return "", false
}

type message struct {
	records  []efs.Record
	reject   *rejection
	state    icom.State
	response bool
}

type rejection struct {
	code int
	tag  efs.TagCode
}

type monitor struct {
	queue  []icom.State
	notify chan struct{}
}

// Linac реализует icom.ControlChannel; канал VX доступен через Monitor().
type Linac struct {
	cfg Config

	mu       sync.Mutex
	cond     *sync.Cond
	state    icom.State
	machine  string
	next     int64
	control  map[icom.Handle]bool
	monitors map[icom.Handle]*monitor
	messages map[icom.Message]*message

	gen       int
	confirmed bool
	started   bool
	dropped   bool

	cancels  int
	confirms int
	sent     []Field
}

var (
	_ icom.ControlChannel = (*Linac)(nil)
	_ icom.MonitorChannel = (*Monitor)(nil)
)

// New создает модель в состоянии PREPARATORY.
func New(cfg Config) *Linac {
	l := &Linac{
		cfg:      cfg,
		state:    icom.StatePreparatory,
		control:  make(map[icom.Handle]bool),
		monitors: make(map[icom.Handle]*monitor),
		messages: make(map[icom.Message]*message),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Monitor возвращает канал VX модели.
func (l *Linac) Monitor() *Monitor {
	return &Monitor{l: l}
}

func (l *Linac) handle() int64 {
	l.next++
	return l.next
}

// setState вызывается под l.mu.
func (l *Linac) setState(s icom.State) {
	if s == l.state {
		return
	}
	l.state = s
	for _, m := range l.monitors {
		m.queue = append(m.queue, s)
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}
}

// State возвращает текущее состояние модели.
func (l *Linac) State() icom.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Cancels возвращает число принятых команд отмены.
func (l *Linac) Cancels() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancels
}

// Confirms возвращает число принятых подтверждений.
func (l *Linac) Confirms() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.confirms
}

// Sent возвращает копию принятых полей.
func (l *Linac) Sent() []Field {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Field, len(l.sent))
	copy(out, l.sent)
	return out
}

// Start - оператор нажал старт на пульте.
func (l *Linac) Start() {
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Drop имитирует потерю связи по обоим каналам.
func (l *Linac) Drop() {
	l.mu.Lock()
	l.dropped = true
	l.gen++
	for _, m := range l.monitors {
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}
	l.mu.Unlock()
	l.cond.Broadcast()
}

func (l *Linac) Connect(address string, timeout time.Duration, machineName string) (icom.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.FailConnect {
		return 0, &icom.CallError{Op: "FXConnect", Code: icom.ResultConnectionFailed}
	}
	l.dropped = false
	l.machine = machineName
	h := icom.Handle(l.handle())
	l.control[h] = true
	return h, nil
}

func (l *Linac) ConnectionState(h icom.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dropped || !l.control[h] {
		return int(icom.ResultNotConnected)
	}
	return 1
}

func (l *Linac) checkControl(op string, h icom.Handle) error {
	if l.dropped || !l.control[h] {
		return &icom.CallError{Op: op, Code: icom.ResultNotConnected}
	}
	return nil
}

func (l *Linac) BeginMessage(h icom.Handle) (icom.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkControl("BeginMessage", h); err != nil {
		return 0, err
	}
	m := icom.Message(l.handle())
	l.messages[m] = &message{}
	return m, nil
}

func (l *Linac) InsertTagValue(m icom.Message, code efs.TagCode, value string, controlPoint int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.messages[m]
	if !ok {
		return &icom.CallError{Op: "InsertTagVal", Code: icom.ResultInvalidMessageHandle}
	}
	msg.records = append(msg.records, efs.Record{Code: code, ControlPoint: controlPoint, Value: value})
	if errCode, bad := l.cfg.Reject[code]; bad && msg.reject == nil {
		msg.reject = &rejection{code: errCode, tag: code}
	}
	return nil
}

func (l *Linac) SendMessage(m icom.Message) (icom.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.messages[m]
	if !ok {
		return 0, &icom.CallError{Op: "SendMessage", Code: icom.ResultInvalidMessageHandle}
	}
	if l.dropped {
		return 0, &icom.CallError{Op: "SendMessage", Code: icom.ResultNotConnected}
	}

	if msg.reject != nil {
		resp := icom.Message(l.handle())
		l.messages[resp] = &message{reject: msg.reject, response: true}
		return resp, nil
	}

	l.sent = append(l.sent, Field{Records: append([]efs.Record(nil), msg.records...)})
	l.gen++
	l.confirmed = false
	l.started = false
	go l.deliver(l.gen)
	return 0, nil
}

// deliver проигрывает сценарий облучения одного поля. Прерывается отменой,
// новой отправкой или потерей связи.
func (l *Linac) deliver(gen int) {
	if !l.step(gen, icom.StateConfirmSettings) {
		return
	}

	l.mu.Lock()
	for l.gen == gen && !l.confirmed {
		l.cond.Wait()
	}
	alive := l.gen == gen
	l.mu.Unlock()
	if !alive || !l.step(gen, icom.StateReadyToStart) {
		return
	}

	if !l.cfg.AutoStart {
		l.mu.Lock()
		for l.gen == gen && !l.started {
			l.cond.Wait()
		}
		alive = l.gen == gen
		l.mu.Unlock()
		if !alive {
			return
		}
	}

	for _, s := range []icom.State{
		icom.StateSegmentStart,
		icom.StateSegmentIrradiate,
		icom.StateSegmentTerminate,
		icom.StateFieldTerminate,
		icom.StateTerminateChecking,
		icom.StateFieldTerminated,
	} {
		if !l.step(gen, s) {
			return
		}
	}
}

func (l *Linac) step(gen int, s icom.State) bool {
	if l.cfg.StepDelay > 0 {
		time.Sleep(l.cfg.StepDelay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	l.setState(s)
	return true
}

func (l *Linac) ErrorCode(response icom.Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.messages[response]
	if !ok || msg.reject == nil {
		return 0
	}
	return msg.reject.code
}

func (l *Linac) ErrorTag(response icom.Message) (efs.TagCode, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.messages[response]
	if !ok {
		return 0, &icom.CallError{Op: "GetErrorTag", Code: icom.ResultInvalidMessageHandle}
	}
	if msg.reject == nil {
		return 0, nil
	}
	return msg.reject.tag, nil
}

func (l *Linac) SendCancel(h icom.Handle) error {
	l.mu.Lock()
	if err := l.checkControl("SendCancel", h); err != nil {
		l.mu.Unlock()
		return err
	}
	l.cancels++
	l.gen++
	l.setState(icom.StatePreparatory)
	l.mu.Unlock()
	l.cond.Broadcast()
	return nil
}

func (l *Linac) SendConfirm(h icom.Handle, code int) error {
	l.mu.Lock()
	if err := l.checkControl("SendConfirm", h); err != nil {
		l.mu.Unlock()
		return err
	}
	l.confirms++
	if code == icom.ConfirmAccept && l.state == icom.StateConfirmSettings {
		l.confirmed = true
	}
	l.mu.Unlock()
	l.cond.Broadcast()
	return nil
}

func (l *Linac) DeleteMessage(m icom.Message) error {
	if m == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.messages[m]; !ok {
		return &icom.CallError{Op: "DeleteMessage", Code: icom.ResultInvalidMessageHandle}
	}
	delete(l.messages, m)
	return nil
}

func (l *Linac) Disconnect(h icom.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.control[h] {
		return &icom.CallError{Op: "Disconnect", Code: icom.ResultInvalidConnectionHandle}
	}
	delete(l.control, h)
	return nil
}

// Messages возвращает число неудаленных сообщений; для проверки утечек.
func (l *Linac) Messages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Monitor - канал VX модели.
type Monitor struct {
	l *Linac
}

func (m *Monitor) Connect(address string, timeout time.Duration) (icom.Handle, error) {
	l := m.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.FailConnect {
		return 0, &icom.CallError{Op: "VXConnect", Code: icom.ResultConnectionFailed}
	}
	h := icom.Handle(l.handle())
	l.monitors[h] = &monitor{
		queue:  []icom.State{l.state},
		notify: make(chan struct{}, 1),
	}
	return h, nil
}

func (m *Monitor) WaitForMessage(h icom.Handle, timeout time.Duration) (icom.Message, error) {
	l := m.l
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		l.mu.Lock()
		mon, ok := l.monitors[h]
		if !ok || l.dropped {
			l.mu.Unlock()
			return 0, &icom.CallError{Op: "WaitForMessage", Code: icom.ResultNotConnected}
		}
		if len(mon.queue) > 0 {
			s := mon.queue[0]
			mon.queue = mon.queue[1:]
			msg := icom.Message(l.handle())
			l.messages[msg] = &message{state: s}
			l.mu.Unlock()
			return msg, nil
		}
		notify := mon.notify
		l.mu.Unlock()

		select {
		case <-notify:
		case <-timer.C:
			if !l.cfg.Heartbeat {
				return 0, nil
			}
			l.mu.Lock()
			msg := icom.Message(l.handle())
			l.messages[msg] = &message{state: l.state}
			l.mu.Unlock()
			return msg, nil
		}
	}
}

func (m *Monitor) State(msg icom.Message) (icom.State, error) {
	l := m.l
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.messages[msg]
	if !ok || rec.response {
		return icom.StateUnknown, &icom.CallError{Op: "GetState", Code: icom.ResultInvalidMessageHandle}
	}
	return rec.state, nil
}

func (m *Monitor) DeleteMessage(msg icom.Message) error {
	return m.l.DeleteMessage(msg)
}

func (m *Monitor) Disconnect(h icom.Handle) error {
	l := m.l
	l.mu.Lock()
	defer l.mu.Unlock()
	mon, ok := l.monitors[h]
	if !ok {
		return &icom.CallError{Op: "Disconnect", Code: icom.ResultInvalidConnectionHandle}
	}
	delete(l.monitors, h)
	select {
	case mon.notify <- struct{}{}:
	default:
	}
	return nil
}
