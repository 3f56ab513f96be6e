// Package sequencer доставляет поля на LINAC: очередь полей, читатель канала
// мониторинга, драйвер канала управления и сессия, которая ими владеет.
package sequencer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iwtcode/icomService/pkg/icom"
)

// DefaultSettleDelay - пауза до и после двойной отмены при перемещении курсора.
const DefaultSettleDelay = time.Second

// Config - параметры сессии.
type Config struct {
	Address        string
	MachineName    string
	ControlTimeout time.Duration
	MonitorTimeout time.Duration
	PollTimeout    time.Duration
	SettleDelay    time.Duration
	QueueSize      int
	QAPatientKey   string
	SiteCodes      map[string]string
}

func (c *Config) setDefaults() {
	if c.ControlTimeout <= 0 {
		c.ControlTimeout = icom.DefaultControlTimeout
	}
	if c.MonitorTimeout <= 0 {
		c.MonitorTimeout = icom.DefaultMonitorTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = icom.DefaultPollTimeout
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.QAPatientKey == "" {
		c.QAPatientKey = DefaultQAPatientKey
	}
}

// Option настраивает сессию.
type Option func(*Session)

// WithLogger задает логгер.
func WithLogger(l Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithHook задает получателя событий.
func WithHook(h Hook) Option {
	return func(s *Session) { s.hook = h }
}

// WithSleep подменяет функцию паузы (для тестов).
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Session) { s.sleep = sleep }
}

// WithPlaylist задает очередь вместо новой пустой.
func WithPlaylist(p *Playlist) Option {
	return func(s *Session) { s.playlist = p }
}

// Session владеет обоими каналами, очередью полей и статусом. Оба рабочих
// цикла и операторский слой работают с одним экземпляром.
type Session struct {
	cfg      Config
	control  icom.ControlChannel
	monitor  icom.MonitorChannel
	playlist *Playlist
	log      Logger
	hook     Hook
	sleep    func(time.Duration)

	ctlMu sync.Mutex
	// opMu сериализует действия оператора.
	opMu sync.Mutex

	mu     sync.Mutex
	driver *Driver
	reader *MonitorReader
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	status string
}

// NewSession создает неподключенную сессию.
func NewSession(cfg Config, control icom.ControlChannel, monitor icom.MonitorChannel, opts ...Option) *Session {
	cfg.setDefaults()
	s := &Session{
		cfg:     cfg,
		control: control,
		monitor: monitor,
		log:     nopLogger{},
		sleep:   time.Sleep,
		status:  "Ready",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.playlist == nil {
		s.playlist = NewPlaylist()
	}
	return s
}

// Config возвращает параметры сессии.
func (s *Session) Config() Config {
	return s.cfg
}

// Playlist возвращает очередь полей сессии.
func (s *Session) Playlist() *Playlist {
	return s.playlist
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Status возвращает текст состояния для оператора.
func (s *Session) Status() string {
	s.mu.Lock()
	driver, status, done := s.driver, s.status, s.done
	s.mu.Unlock()
	if driver != nil && done != nil {
		select {
		case <-done:
		default:
			return driver.Status()
		}
	}
	return status
}

// Connected сообщает, работают ли рабочие циклы.
func (s *Session) Connected() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Phase возвращает фазу драйвера.
func (s *Session) Phase() (Phase, icom.State) {
	s.mu.Lock()
	driver := s.driver
	s.mu.Unlock()
	if driver == nil {
		return PhaseIdle, 0
	}
	return driver.Phase()
}

// MachineState возвращает последнее состояние, полученное по VX.
func (s *Session) MachineState() icom.State {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return icom.StateUnknown
	}
	return reader.Current()
}

// Connect открывает FX и VX и запускает рабочие циклы. Ошибка подключения
// не повторяется.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			s.mu.Unlock()
			return ErrAlreadyConnected
		}
	}
	s.status = "Connecting..."
	s.mu.Unlock()

	loader := &Loader{
		MachineName:  s.cfg.MachineName,
		QAPatientKey: s.cfg.QAPatientKey,
		SiteCodes:    s.cfg.SiteCodes,
	}
	reader := NewMonitorReader(s.monitor, s.cfg.Address, s.cfg.MonitorTimeout, s.cfg.PollTimeout, s.cfg.QueueSize, s.log, s.hook)
	driver := NewDriver(s.control, s.playlist, reader.States(), loader, &s.ctlMu, s.log, s.hook)

	if err := driver.Connect(s.cfg.Address, s.cfg.ControlTimeout, s.cfg.MachineName); err != nil {
		s.setStatus("Connection Failed")
		return err
	}
	if err := reader.Connect(); err != nil {
		_ = driver.Close()
		s.setStatus("Connection Failed")
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.driver = driver
	s.reader = reader
	s.cancel = cancel
	s.done = done
	s.err = nil
	s.status = "Connected"
	s.mu.Unlock()

	s.hook.emit(Event{Kind: EventConnected})
	go s.run(runCtx, cancel, driver, reader, done)
	return nil
}

// run ждет оба цикла: завершение любого из них останавливает второй.
func (s *Session) run(ctx context.Context, cancel context.CancelFunc, driver *Driver, reader *MonitorReader, done chan struct{}) {
	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		errs[0] = reader.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		errs[1] = driver.Run(ctx)
	}()
	wg.Wait()

	err := errors.Join(errs...)
	closeErr := errors.Join(driver.Close(), reader.Close())
	if closeErr != nil {
		s.log.Warn("Disconnect failed", "error", closeErr)
	}

	s.mu.Lock()
	s.err = err
	if err != nil {
		s.status = "Connection Lost"
	} else {
		s.status = "Disconnected"
	}
	s.mu.Unlock()

	s.hook.emit(Event{Kind: EventDisconnected, Err: err})
	close(done)
}

// Done закрывается, когда оба цикла завершены и каналы закрыты.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err возвращает причину завершения циклов; nil - штатное закрытие.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close останавливает циклы и закрывает оба канала.
func (s *Session) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	s.playlist.Pause()
	cancel()
	<-done
	return nil
}

// Enqueue добавляет поля в очередь и запускает воспроизведение.
func (s *Session) Enqueue(fields ...Field) {
	s.playlist.Append(fields...)
	s.playlist.Play()
}

// Play запускает воспроизведение.
func (s *Session) Play() {
	s.playlist.Play()
}

// Pause снимает флаг воспроизведения без отмены на аппарате.
func (s *Session) Pause() {
	s.playlist.Pause()
}

// Stop останавливает воспроизведение, отменяет поле на аппарате и очищает очередь.
func (s *Session) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.playlist.Pause()
	var err error
	if s.Connected() {
		err = s.cancelTwice()
	}
	s.playlist.Clear()
	s.hook.emit(Event{Kind: EventReposition, Index: 0})
	return err
}

// Skip переходит к следующему полю.
func (s *Session) Skip() error {
	return s.reposition(func(cur int) int { return cur + 1 })
}

// Previous возвращается к предыдущему полю.
func (s *Session) Previous() error {
	return s.reposition(func(cur int) int {
		if cur > 0 {
			return cur - 1
		}
		return 0
	})
}

// Repeat повторяет текущее поле.
func (s *Session) Repeat() error {
	return s.reposition(func(cur int) int { return cur })
}

// Restart начинает очередь сначала.
func (s *Session) Restart() error {
	return s.reposition(func(int) int { return 0 })
}

// reposition: пауза, выдержка, двойная отмена, выдержка, новый курсор,
// воспроизведение. Без отмены курсор не меняется.
func (s *Session) reposition(target func(cur int) int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.Connected() {
		return ErrNotConnected
	}

	cur := s.playlist.Cursor()
	s.playlist.Pause()
	s.sleep(s.cfg.SettleDelay)
	if err := s.cancelTwice(); err != nil {
		return err
	}
	s.sleep(s.cfg.SettleDelay)

	next := target(cur)
	s.playlist.SetCursor(next)
	s.log.Info("Playlist repositioned", "from", cur+1, "to", next+1)
	s.hook.emit(Event{Kind: EventReposition, Index: next})
	s.playlist.Play()
	return nil
}

// cancelTwice отменяет и отправляемое, и ожидающее в очереди поле.
func (s *Session) cancelTwice() error {
	s.mu.Lock()
	driver := s.driver
	s.mu.Unlock()
	if driver == nil {
		return ErrNotConnected
	}
	for i := 0; i < 2; i++ {
		if err := driver.Cancel(); err != nil {
			return err
		}
	}
	return nil
}
