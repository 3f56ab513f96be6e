package linac_service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/pkg/icom"
	"github.com/iwtcode/icomService/pkg/icom/sim"
	"github.com/iwtcode/icomService/pkg/sequencer"
)

var (
	// ErrSessionNotFound - сессии нет в активном пуле.
	ErrSessionNotFound = errors.New("сессия не найдена")
	// ErrAlreadyActive - для адреса уже есть живая сессия.
	ErrAlreadyActive = errors.New("подключение уже активно")
	// ErrInvalidAddress - адрес LINAC не является IP адресом.
	ErrInvalidAddress = errors.New("неверный формат ip")
)

// ChannelFactory создает каналы FX и VX для новой сессии.
type ChannelFactory func() (icom.ControlChannel, icom.MonitorChannel, error)

// NewChannelFactory возвращает каналы iCOMClient или, если включен
// ICOM_SIMULATOR, отдельную модель LINAC на каждую сессию.
func NewChannelFactory(cfg *config.AppConfig) ChannelFactory {
	if cfg.Linac.Simulator {
		return func() (icom.ControlChannel, icom.MonitorChannel, error) {
			model := sim.New(sim.Config{AutoStart: true, StepDelay: cfg.Linac.SimStepDelay})
			return model, model.Monitor(), nil
		}
	}
	return func() (icom.ControlChannel, icom.MonitorChannel, error) {
		binding, err := icom.Native()
		if err != nil {
			return nil, nil, fmt.Errorf("%w (для работы без аппарата задайте ICOM_SIMULATOR=true)", err)
		}
		return binding, binding.Monitor(), nil
	}
}

// HookProvider выдает получателя событий для сессии.
type HookProvider interface {
	Hook(sessionID, machine string) sequencer.Hook
}

type connection struct {
	session *sequencer.Session
	info    models.ConnectionInfo
	err     error // ошибка восстановления
}

func (c *connection) snapshot() *models.ConnectionInfo {
	info := c.info
	phase, _ := c.session.Phase()
	info.Connected = c.session.Connected()
	info.Status = c.session.Status()
	info.Phase = phase.String()
	info.MachineState = c.session.MachineState().String()
	if err := c.session.Err(); err != nil {
		info.Error = err.Error()
	} else if c.err != nil {
		info.Error = c.err.Error()
	}
	return &info
}

type ConnectionManager struct {
	mu       sync.RWMutex
	pool     map[string]*connection
	cfg      config.LinacConfig
	channels ChannelFactory
	hooks    HookProvider
	dbRepo   interfaces.LinacConnectionRepository
	hostname string
	logger   *logging.Logger
}

func NewConnectionManager(cfg *config.AppConfig, channels ChannelFactory, hooks HookProvider, dbRepo interfaces.LinacConnectionRepository, logger *logging.Logger) *ConnectionManager {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &ConnectionManager{
		pool:     make(map[string]*connection),
		cfg:      cfg.Linac,
		channels: channels,
		hooks:    hooks,
		dbRepo:   dbRepo,
		hostname: hostname,
		logger:   logger.WithPrefix("CONNECTOR"),
	}
}

// Hostname - узел, которому принадлежат создаваемые подключения.
func (cm *ConnectionManager) Hostname() string {
	return cm.hostname
}

func (cm *ConnectionManager) sessionConfig(ip, machine string) sequencer.Config {
	return sequencer.Config{
		Address:        ip,
		MachineName:    machine,
		ControlTimeout: cm.cfg.ControlTimeout,
		MonitorTimeout: cm.cfg.MonitorTimeout,
		PollTimeout:    cm.cfg.PollTimeout,
		SettleDelay:    cm.cfg.SettleDelay,
		QueueSize:      cm.cfg.QueueSize,
		QAPatientKey:   cm.cfg.QAPatientKey,
		SiteCodes:      cm.cfg.SiteCodes,
	}
}

// newSession создает сессию; подключается вызывающий.
func (cm *ConnectionManager) newSession(sessionID, ip, machine string) (*sequencer.Session, error) {
	control, monitor, err := cm.channels()
	if err != nil {
		return nil, err
	}
	opts := []sequencer.Option{
		sequencer.WithLogger(cm.logger.WithPrefix(machine + " " + shortID(sessionID))),
	}
	if cm.hooks != nil {
		opts = append(opts, sequencer.WithHook(cm.hooks.Hook(sessionID, machine)))
	}
	return sequencer.NewSession(cm.sessionConfig(ip, machine), control, monitor, opts...), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (cm *ConnectionManager) CreateConnection(req models.ConnectionRequest) (*models.ConnectionInfo, error) {
	ip := strings.TrimSpace(req.IP)
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("%w. Ожидается IP адрес, получено '%s'", ErrInvalidAddress, req.IP)
	}
	machine := strings.TrimSpace(req.MachineName)
	if machine == "" {
		machine = cm.cfg.Name
	}

	existing, err := cm.dbRepo.GetByIP(ip)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ошибка при проверке подключения в БД: %w", err)
	}
	if existing != nil {
		cm.mu.RLock()
		conn, exists := cm.pool[existing.SessionID]
		cm.mu.RUnlock()
		if exists && conn.session.Connected() {
			return nil, fmt.Errorf("%w: '%s' с SessionID: %s", ErrAlreadyActive, ip, existing.SessionID)
		}
		if exists {
			cm.logger.Warn("Connection for IP exists in pool but is down. Replacing it with a new session.", "ip", ip, "sessionID", existing.SessionID)
			cm.remove(existing.SessionID)
		} else {
			cm.logger.Warn("Connection for IP exists in DB but not in pool. Deleting old DB record and creating a new session.", "ip", ip)
		}
		_ = cm.dbRepo.Delete(existing.SessionID)
	}

	sessionID := uuid.New().String()
	session, err := cm.newSession(sessionID, ip, machine)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать каналы iCOM: %w", err)
	}
	if err := session.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("первичная проверка подключения провалена: %w", err)
	}

	now := time.Now()
	entity := &entities.LinacConnection{
		SessionID:   sessionID,
		Hostname:    cm.hostname,
		IP:          ip,
		MachineName: machine,
		Status:      entities.StatusConnected,
	}
	if err := cm.dbRepo.Create(entity); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("не удалось сохранить новое подключение %s в БД: %w", sessionID, err)
	}

	conn := &connection{
		session: session,
		info: models.ConnectionInfo{
			SessionID:   sessionID,
			IP:          ip,
			MachineName: machine,
			Hostname:    cm.hostname,
			CreatedAt:   now,
		},
	}
	cm.mu.Lock()
	cm.pool[sessionID] = conn
	cm.mu.Unlock()
	go cm.watch(sessionID, conn)

	cm.logger.Info("Connection created successfully", "sessionID", sessionID, "ip", ip, "machine", machine)
	return conn.snapshot(), nil
}

// RestoreConnection поднимает сохраненное подключение. Неудачная попытка
// остается в пуле с ошибкой, чтобы оператор видел ее и мог удалить сессию.
func (cm *ConnectionManager) RestoreConnection(saved entities.LinacConnection) (*models.ConnectionInfo, error) {
	session, err := cm.newSession(saved.SessionID, saved.IP, saved.MachineName)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать каналы iCOM: %w", err)
	}

	conn := &connection{
		session: session,
		info: models.ConnectionInfo{
			SessionID:   saved.SessionID,
			IP:          saved.IP,
			MachineName: saved.MachineName,
			Hostname:    saved.Hostname,
			CreatedAt:   saved.CreatedAt,
		},
	}

	status := entities.StatusConnected
	if err := session.Connect(context.Background()); err != nil {
		conn.err = err
		status = entities.StatusDisconnected
		cm.logger.Warn("Failed to restore connection", "sessionID", saved.SessionID, "ip", saved.IP, "error", err)
	}
	if err := cm.dbRepo.UpdateStatus(saved.SessionID, status); err != nil {
		cm.logger.Error("Failed to update connection status in DB", "sessionID", saved.SessionID, "error", err)
	}

	cm.mu.Lock()
	cm.pool[saved.SessionID] = conn
	cm.mu.Unlock()
	if conn.err == nil {
		go cm.watch(saved.SessionID, conn)
	}

	return conn.snapshot(), nil
}

// watch отмечает в БД потерю связи. Удаленные из пула сессии не трогает.
func (cm *ConnectionManager) watch(sessionID string, conn *connection) {
	<-conn.session.Done()

	cm.mu.RLock()
	current := cm.pool[sessionID]
	cm.mu.RUnlock()
	if current != conn {
		return
	}

	cm.logger.Warn("LINAC session ended", "sessionID", sessionID, "error", conn.session.Err())
	if err := cm.dbRepo.UpdateStatus(sessionID, entities.StatusDisconnected); err != nil {
		cm.logger.Error("Failed to update connection status in DB", "sessionID", sessionID, "error", err)
	}
}

func (cm *ConnectionManager) GetConnection(sessionID string) (*models.ConnectionInfo, bool) {
	cm.mu.RLock()
	conn, found := cm.pool[sessionID]
	cm.mu.RUnlock()
	if !found {
		return nil, false
	}
	return conn.snapshot(), true
}

func (cm *ConnectionManager) GetAllConnections() []*models.ConnectionInfo {
	cm.mu.RLock()
	conns := make([]*connection, 0, len(cm.pool))
	for _, conn := range cm.pool {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	infos := make([]*models.ConnectionInfo, 0, len(conns))
	for _, conn := range conns {
		infos = append(infos, conn.snapshot())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Session возвращает сессию из пула.
func (cm *ConnectionManager) Session(sessionID string) (*sequencer.Session, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conn, found := cm.pool[sessionID]
	if !found {
		return nil, fmt.Errorf("%w: '%s'", ErrSessionNotFound, sessionID)
	}
	return conn.session, nil
}

// remove убирает сессию из пула и закрывает ее.
func (cm *ConnectionManager) remove(sessionID string) bool {
	cm.mu.Lock()
	conn, exists := cm.pool[sessionID]
	delete(cm.pool, sessionID)
	cm.mu.Unlock()
	if !exists {
		return false
	}
	if err := conn.session.Close(); err != nil {
		cm.logger.Warn("Failed to close session", "sessionID", sessionID, "error", err)
	}
	return true
}

func (cm *ConnectionManager) DeleteConnection(sessionID string) error {
	if !cm.remove(sessionID) {
		err := cm.dbRepo.Delete(sessionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ошибка удаления сессии '%s' из БД: %w", sessionID, err)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: '%s' нет ни в активном пуле, ни в БД", ErrSessionNotFound, sessionID)
		}
		cm.logger.Info("Session (not in pool) successfully deleted from DB.", "sessionID", sessionID)
		return nil
	}

	if err := cm.dbRepo.Delete(sessionID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ошибка удаления сессии '%s' из БД: %w", sessionID, err)
	}

	cm.logger.Info("Session deleted successfully.", "sessionID", sessionID)
	return nil
}

// CloseAll закрывает все сессии при остановке сервиса. Записи в БД
// остаются для восстановления.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	ids := make([]string, 0, len(cm.pool))
	for id := range cm.pool {
		ids = append(ids, id)
	}
	cm.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			cm.remove(id)
		}(id)
	}
	wg.Wait()
	cm.logger.Info("All sessions closed", "count", len(ids))
}
