package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/icom"
)

// Phase - фаза цикла доставки.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseWaiting
	PhaseLoading
	PhaseSending
	PhaseAwaitState
	PhaseAdvancing
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseConnecting:
		return "Connecting"
	case PhaseWaiting:
		return "Waiting"
	case PhaseLoading:
		return "Loading"
	case PhaseSending:
		return "Sending"
	case PhaseAwaitState:
		return "AwaitState"
	case PhaseAdvancing:
		return "Advancing"
	case PhaseStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Driver ведет поля через канал FX: загрузка, отмена, отправка и ожидание
// состояний PREPARATORY, CONFIRM SETTINGS, READY TO START, SEGMENT IRRADIATE,
// FIELD TERMINATED. Курсор сдвигается только после последнего состояния.
type Driver struct {
	control  icom.ControlChannel
	playlist *Playlist
	states   <-chan icom.State
	loader   *Loader
	log      Logger
	hook     Hook

	// ctlMu сериализует вызовы FX между драйвером и действиями оператора.
	ctlMu *sync.Mutex

	mu        sync.Mutex
	handle    icom.Handle
	phase     Phase
	target    icom.State
	lastState icom.State
	// settled: lastState совпадает с состоянием аппарата. Сбрасывается
	// отправкой поля, восстанавливается извлеченным целевым состоянием.
	settled bool
	field   string
}

// NewDriver создает драйвер. states - очередь MonitorReader.
func NewDriver(control icom.ControlChannel, playlist *Playlist, states <-chan icom.State, loader *Loader, ctlMu *sync.Mutex, log Logger, hook Hook) *Driver {
	if log == nil {
		log = nopLogger{}
	}
	if ctlMu == nil {
		ctlMu = &sync.Mutex{}
	}
	return &Driver{
		control:   control,
		playlist:  playlist,
		states:    states,
		loader:    loader,
		log:       log,
		hook:      hook,
		ctlMu:     ctlMu,
		lastState: -1,
	}
}

// Phase возвращает текущую фазу и целевое состояние (для AwaitState).
func (d *Driver) Phase() (Phase, icom.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase, d.target
}

// LastState возвращает последнее состояние, извлеченное из очереди.
func (d *Driver) LastState() icom.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastState
}

// Handle возвращает дескриптор FX.
func (d *Driver) Handle() icom.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}

func (d *Driver) setPhase(p Phase, target icom.State) {
	d.mu.Lock()
	changed := d.phase != p || d.target != target
	d.phase = p
	d.target = target
	d.mu.Unlock()
	if changed {
		d.hook.emit(Event{Kind: EventPhase, Phase: p, Target: target})
	}
}

// Status возвращает текст состояния для оператора.
func (d *Driver) Status() string {
	d.mu.Lock()
	phase, target, last, field := d.phase, d.target, d.lastState, d.field
	d.mu.Unlock()

	switch phase {
	case PhaseIdle:
		return "Ready"
	case PhaseConnecting:
		return "Connecting..."
	case PhaseWaiting:
		if d.playlist.Playing() {
			return "Connected - Playing"
		}
		return "Connected - Waiting for Fields"
	case PhaseLoading:
		return fmt.Sprintf("Loading: %s", field)
	case PhaseSending:
		return fmt.Sprintf("Sending: %s", field)
	case PhaseAwaitState:
		if !d.playlist.Playing() && last.Valid() {
			return fmt.Sprintf("Waiting for: %s - Currently: %s", target, last)
		}
		return fmt.Sprintf("Waiting for: %s", target)
	case PhaseAdvancing:
		return fmt.Sprintf("Delivered: %s", field)
	default:
		return "Disconnected"
	}
}

// Connect открывает канал FX.
func (d *Driver) Connect(address string, timeout time.Duration, machineName string) error {
	d.setPhase(PhaseConnecting, 0)
	d.log.Info("FX connecting", "linac", machineName, "address", address)

	d.ctlMu.Lock()
	h, err := d.control.Connect(address, timeout, machineName)
	d.ctlMu.Unlock()
	if err != nil {
		d.setPhase(PhaseStopped, 0)
		d.log.Error("Unable to establish FX connection", "address", address, "error", err)
		return &ChannelError{Channel: ChannelControl, Op: "connect", Err: err}
	}

	d.mu.Lock()
	d.handle = h
	d.mu.Unlock()
	d.log.Info("FX connection established", "handle", h)
	d.setPhase(PhaseWaiting, 0)
	return nil
}

// Cancel отправляет команду отмены текущего поля.
func (d *Driver) Cancel() error {
	h := d.Handle()
	if h <= 0 {
		return ErrNotConnected
	}
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()
	if err := d.control.SendCancel(h); err != nil {
		return &ChannelError{Channel: ChannelControl, Op: "cancel", Err: err}
	}
	return nil
}

// Run выполняет цикл доставки до отмены ctx или потери связи.
func (d *Driver) Run(ctx context.Context) error {
	defer d.setPhase(PhaseStopped, 0)

	for {
		if ctx.Err() != nil {
			return nil
		}
		d.setPhase(PhaseWaiting, 0)

		changed := d.playlist.Changed()
		field, idx, ok := d.playlist.Next()
		if !ok {
			select {
			case <-changed:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		err := d.deliver(ctx, field, idx)
		if err == nil {
			d.setPhase(PhaseAdvancing, 0)
			d.playlist.AdvanceFrom(idx)
			d.log.Info("Field delivered", "field", field.Name, "index", idx+1)
			d.hook.emit(Event{Kind: EventFieldDelivered, Field: &field, Index: idx})
			continue
		}

		d.hook.emit(Event{Kind: EventFieldFailed, Field: &field, Index: idx, Err: err})

		var (
			seqErr   *SequenceError
			protoErr *ProtocolError
			chErr    *ChannelError
		)
		switch {
		case errors.As(err, &seqErr):
			switch seqErr.Reason {
			case ReasonStopped:
				return nil
			case ReasonDisconnected:
				d.log.Error("Monitor channel closed while waiting", "field", field.Name, "target", seqErr.Target.String())
				return err
			default:
				d.log.Info("Wait interrupted", "field", field.Name, "target", seqErr.Target.String())
			}
		case errors.As(err, &protoErr):
			d.log.Error("Field rejected by LINAC",
				"field", field.Name,
				"code", protoErr.Code,
				"tag", protoErr.Tag.String(),
				"tag_name", efs.TagName(protoErr.Tag),
				"category", efs.ErrorCategory(protoErr.Code))
			d.playlist.Pause()
		case errors.As(err, &chErr):
			d.log.Error("FX channel error", "field", field.Name, "op", chErr.Op, "error", chErr.Err)
			return err
		default:
			d.log.Error("Field not delivered", "field", field.Name, "error", err)
			d.playlist.Pause()
		}
	}
}

func (d *Driver) deliver(ctx context.Context, f Field, idx int) error {
	d.mu.Lock()
	d.field = f.Name
	d.mu.Unlock()
	d.log.Info("Field", "index", idx+1, "total", d.playlist.Len(), "name", f.Name)
	d.hook.emit(Event{Kind: EventFieldStarted, Field: &f, Index: idx})

	d.setPhase(PhaseLoading, 0)
	records, err := d.loader.Load(f)
	if err != nil {
		return err
	}
	msg, err := d.build(records)
	if err != nil {
		return err
	}
	defer d.deleteMessage(msg)

	d.setPhase(PhaseSending, 0)
	h := d.Handle()
	d.ctlMu.Lock()
	connState := d.control.ConnectionState(h)
	d.ctlMu.Unlock()
	if connState <= 0 {
		d.log.Error("Connection lost", "code", connState)
		return &ChannelError{Channel: ChannelControl, Op: "connection state", Err: &icom.CallError{Op: "GetConnectionState", Code: icom.Result(connState)}}
	}

	if err := d.Cancel(); err != nil {
		return err
	}
	if err := d.await(ctx, f, icom.StatePreparatory); err != nil {
		return err
	}

	d.setPhase(PhaseSending, 0)
	if err := d.send(f, msg); err != nil {
		return err
	}

	for _, target := range icom.DeliveryStates {
		if err := d.await(ctx, f, target); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) build(records []efs.Record) (icom.Message, error) {
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()

	msg, err := d.control.BeginMessage(d.Handle())
	if err != nil {
		return 0, &ChannelError{Channel: ChannelControl, Op: "begin message", Err: err}
	}
	for _, r := range records {
		if err := d.control.InsertTagValue(msg, r.Code, r.Value, r.ControlPoint); err != nil {
			d.log.Warn("Tag rejected by iCOM client",
				"tag", r.Code.String(),
				"tag_name", efs.TagName(r.Code),
				"cp", r.ControlPoint,
				"value", r.Value,
				"error", err)
		}
	}
	return msg, nil
}

// send проверяет флаг воспроизведения под ctlMu: перемещение курсора снимает
// флаг до своих отмен, поэтому поле не уходит после них.
func (d *Driver) send(f Field, msg icom.Message) error {
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()

	if !d.playlist.Playing() {
		return &SequenceError{Field: f.Name, Target: icom.StateUnknown, Reason: ReasonInterrupted}
	}

	resp, err := d.control.SendMessage(msg)
	if err != nil {
		return &ChannelError{Channel: ChannelControl, Op: "send message", Err: err}
	}
	if resp <= 0 {
		d.setSettled(false)
		d.log.Info("Field sent successfully", "field", f.Name)
		return nil
	}
	defer func() {
		if err := d.control.DeleteMessage(resp); err != nil {
			d.log.Warn("Failed to delete FX response", "error", err)
		}
	}()

	code := d.control.ErrorCode(resp)
	tag, tagErr := d.control.ErrorTag(resp)
	if code > 0 && tagErr == nil {
		return &ProtocolError{Field: f.Name, Code: code, Tag: tag}
	}
	d.setSettled(false)
	d.log.Info("Field sent successfully", "field", f.Name)
	return nil
}

func (d *Driver) deleteMessage(msg icom.Message) {
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()
	if err := d.control.DeleteMessage(msg); err != nil {
		d.log.Warn("Failed to delete FX message", "error", err)
	}
}

func (d *Driver) setSettled(v bool) {
	d.mu.Lock()
	d.settled = v
	d.mu.Unlock()
}

// reached: аппарат уже в target и новых уведомлений нет. Иначе target
// должен прийти из очереди во время этого ожидания.
func (d *Driver) reached(target icom.State) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled && d.lastState == target && len(d.states) == 0
}

// await извлекает состояния из очереди, пока не встретит target. На CONFIRM
// SETTINGS при ожидании того же состояния отправляет подтверждение.
func (d *Driver) await(ctx context.Context, f Field, target icom.State) error {
	d.setPhase(PhaseAwaitState, target)
	if d.reached(target) {
		return nil
	}

	for {
		changed := d.playlist.Changed()
		if !d.playlist.Playing() {
			return &SequenceError{Field: f.Name, Target: target, Reason: ReasonInterrupted}
		}

		select {
		case s, ok := <-d.states:
			if !ok {
				return &SequenceError{Field: f.Name, Target: target, Reason: ReasonDisconnected}
			}
			d.mu.Lock()
			d.lastState = s
			d.mu.Unlock()
			d.log.Debug("State popped", "state", s.String(), "target", target.String())

			if target == icom.StateConfirmSettings && s == icom.StateConfirmSettings && d.playlist.Playing() {
				if err := d.confirm(); err != nil {
					return err
				}
			}
			if s == target {
				d.setSettled(true)
				return nil
			}
		case <-changed:
		case <-ctx.Done():
			return &SequenceError{Field: f.Name, Target: target, Reason: ReasonStopped}
		}
	}
}

func (d *Driver) confirm() error {
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()
	if err := d.control.SendConfirm(d.Handle(), icom.ConfirmAccept); err != nil {
		return &ChannelError{Channel: ChannelControl, Op: "confirm", Err: err}
	}
	d.log.Info("Settings confirmed")
	return nil
}

// Close закрывает канал FX. Вызывать после завершения Run.
func (d *Driver) Close() error {
	d.mu.Lock()
	h := d.handle
	d.handle = 0
	d.mu.Unlock()
	if h <= 0 {
		return nil
	}
	d.log.Info("Closing FX connection")
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()
	if err := d.control.Disconnect(h); err != nil && !errors.Is(err, icom.ErrNotConnected) {
		return &ChannelError{Channel: ChannelControl, Op: "disconnect", Err: err}
	}
	return nil
}
