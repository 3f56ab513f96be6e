package linac_service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/icom"
	"github.com/iwtcode/icomService/pkg/icom/sim"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(&logging.Config{Enabled: false}, "TEST")
}

func testConfig(dir string) *config.AppConfig {
	return &config.AppConfig{
		SequencesFile: filepath.Join(dir, "sequences.yaml"),
		Linac: config.LinacConfig{
			Name:         "6480",
			PollTimeout:  5 * time.Millisecond,
			SettleDelay:  time.Millisecond,
			QAPatientKey: "1QASNC",
			SiteCodes:    map[string]string{"6480": "PO9"},
		},
		MQTT: config.MQTTConfig{TopicPrefix: "linac"},
	}
}

type fakeConnRepo struct {
	mu    sync.Mutex
	conns map[string]entities.LinacConnection
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{conns: make(map[string]entities.LinacConnection)}
}

func (r *fakeConnRepo) Create(conn *entities.LinacConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.SessionID] = *conn
	return nil
}

func (r *fakeConnRepo) GetByIP(ip string) (*entities.LinacConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.IP == ip {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeConnRepo) GetBySessionID(sessionID string) (*entities.LinacConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeConnRepo) GetByHostname(hostname string) ([]entities.LinacConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.LinacConnection
	for _, c := range r.conns {
		if c.Hostname == hostname {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConnRepo) UpdateStatus(sessionID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Status = status
	r.conns[sessionID] = c
	return nil
}

func (r *fakeConnRepo) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[sessionID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.conns, sessionID)
	return nil
}

func (r *fakeConnRepo) status(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[sessionID].Status
}

type fakeDeliveries struct {
	mu      sync.Mutex
	records []entities.DeliveryRecord
}

func (r *fakeDeliveries) Create(rec *entities.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeDeliveries) ListBySession(sessionID string, limit int) ([]entities.DeliveryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.DeliveryRecord
	for _, rec := range r.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeDeliveries) all() []entities.DeliveryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.DeliveryRecord(nil), r.records...)
}

type fakeKafka struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (k *fakeKafka) Produce(_ context.Context, key, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.messages == nil {
		k.messages = make(map[string][][]byte)
	}
	k.messages[string(key)] = append(k.messages[string(key)], value)
	return nil
}

func (k *fakeKafka) Close() error { return nil }

func (k *fakeKafka) count(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.messages[key])
}

type fakeMQTT struct {
	mu     sync.Mutex
	topics []string
}

func (m *fakeMQTT) Publish(topic string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return nil
}

func (m *fakeMQTT) Close() error { return nil }

func (m *fakeMQTT) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.topics...)
}

// simChannels выдает модели LINAC и запоминает их.
type simChannels struct {
	mu     sync.Mutex
	cfg    sim.Config
	models []*sim.Linac
}

func (s *simChannels) factory() (icom.ControlChannel, icom.MonitorChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	model := sim.New(s.cfg)
	s.models = append(s.models, model)
	return model, model.Monitor(), nil
}

func (s *simChannels) last() *sim.Linac {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models[len(s.models)-1]
}

// writeEFS сохраняет минимальный EFS файл поля.
func writeEFS(t *testing.T, dir, name string) string {
	t.Helper()
	f := efs.NewFile()
	f.Add(efs.TagMUs, 0, "100.0")
	f.Add(efs.TagLinac, 0, "6480")
	f.Add(efs.TagPatientID, 0, "12345")
	f.Add(efs.TagPatientName, 0, "DOE^JOHN")
	f.Add(efs.TagBeamName, 0, name)
	f.Add(efs.TagDoseRate, 1, "600")
	f.Add(efs.TagMeterSet, 1, "0.0")
	f.Add(efs.TagMeterSet, 2, "100.0")

	path := filepath.Join(dir, "Beam_"+name+efs.Extension)
	require.NoError(t, f.Save(path))
	return path
}
