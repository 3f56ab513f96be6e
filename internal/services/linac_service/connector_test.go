package linac_service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/icom/sim"
)

type serviceFixture struct {
	dir      string
	svc      *linacService
	repo     *fakeConnRepo
	channels *simChannels
}

func newServiceFixture(t *testing.T, simCfg sim.Config) *serviceFixture {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)
	catalog, err := NewCatalog(cfg, testLogger())
	require.NoError(t, err)

	f := &serviceFixture{
		dir:      dir,
		repo:     newFakeConnRepo(),
		channels: &simChannels{cfg: simCfg},
	}
	f.svc = newLinacService(cfg, f.channels.factory, f.repo, nil, catalog, NewPlanConverter("", testLogger()), testLogger())
	t.Cleanup(func() {
		f.svc.CloseAll()
		_ = catalog.Close()
	})
	return f
}

func (f *serviceFixture) connect(t *testing.T, ip string) *models.ConnectionInfo {
	t.Helper()
	info, err := f.svc.CreateConnection(models.ConnectionRequest{IP: ip})
	require.NoError(t, err)
	return info
}

func TestCreateConnection(t *testing.T) {
	f := newServiceFixture(t, sim.Config{})

	_, err := f.svc.CreateConnection(models.ConnectionRequest{IP: "linac-1"})
	require.ErrorIs(t, err, ErrInvalidAddress)

	info := f.connect(t, "192.168.30.1")
	assert.True(t, info.Connected)
	assert.Equal(t, "6480", info.MachineName)
	assert.Equal(t, "Connected", info.Status)
	assert.Equal(t, entities.StatusConnected, f.repo.status(info.SessionID))

	_, err = f.svc.CreateConnection(models.ConnectionRequest{IP: "192.168.30.1"})
	require.ErrorIs(t, err, ErrAlreadyActive)
	assert.Contains(t, err.Error(), info.SessionID)

	got, ok := f.svc.GetConnection(info.SessionID)
	require.True(t, ok)
	assert.Equal(t, "192.168.30.1", got.IP)
	assert.Len(t, f.svc.GetAllConnections(), 1)
}

func TestConnectionLossMarksRecordAndAllowsReconnect(t *testing.T) {
	f := newServiceFixture(t, sim.Config{})
	info := f.connect(t, "192.168.30.1")

	f.channels.last().Drop()
	require.Eventually(t, func() bool {
		return f.repo.status(info.SessionID) == entities.StatusDisconnected
	}, 5*time.Second, 5*time.Millisecond)

	got, ok := f.svc.GetConnection(info.SessionID)
	require.True(t, ok)
	assert.False(t, got.Connected)
	assert.Equal(t, "Connection Lost", got.Status)
	assert.NotEmpty(t, got.Error)

	again := f.connect(t, "192.168.30.1")
	assert.NotEqual(t, info.SessionID, again.SessionID)
	_, ok = f.svc.GetConnection(info.SessionID)
	assert.False(t, ok)
	assert.Len(t, f.svc.GetAllConnections(), 1)
}

func TestDeleteConnection(t *testing.T) {
	f := newServiceFixture(t, sim.Config{})
	info := f.connect(t, "192.168.30.1")

	require.NoError(t, f.svc.DeleteConnection(info.SessionID))
	_, ok := f.svc.GetConnection(info.SessionID)
	assert.False(t, ok)
	_, err := f.repo.GetBySessionID(info.SessionID)
	assert.Error(t, err)
	assert.Equal(t, 0, f.channels.last().Messages())

	err = f.svc.DeleteConnection(info.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRestoreConnectionKeepsFailedSession(t *testing.T) {
	f := newServiceFixture(t, sim.Config{FailConnect: true})
	saved := entities.LinacConnection{SessionID: "saved-session", IP: "192.168.30.2", MachineName: "6480", Status: entities.StatusConnected}
	require.NoError(t, f.repo.Create(&saved))

	info, err := f.svc.RestoreConnection(saved)
	require.NoError(t, err)
	assert.False(t, info.Connected)
	assert.NotEmpty(t, info.Error)
	assert.Equal(t, entities.StatusDisconnected, f.repo.status(saved.SessionID))

	_, ok := f.svc.GetConnection(saved.SessionID)
	assert.True(t, ok)

	_, err = f.svc.Control(saved.SessionID, ActionSkip)
	assert.Error(t, err)
}

func TestCloseAllKeepsRecords(t *testing.T) {
	f := newServiceFixture(t, sim.Config{})
	info := f.connect(t, "192.168.30.1")

	f.svc.CloseAll()
	assert.Empty(t, f.svc.GetAllConnections())
	_, err := f.repo.GetBySessionID(info.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, entities.StatusConnected, f.repo.status(info.SessionID))
}

func TestEnqueueFilesDeliversFields(t *testing.T) {
	f := newServiceFixture(t, sim.Config{AutoStart: true})
	info := f.connect(t, "192.168.30.1")
	a := writeEFS(t, f.dir, "A")
	b := writeEFS(t, f.dir, "B")
	mu := 25.0

	pl, err := f.svc.EnqueueFiles(models.FilesRequest{
		SessionID:      info.SessionID,
		Paths:          []string{a, b},
		OverrideValues: models.OverrideValues{MU: &mu},
	})
	require.NoError(t, err)
	assert.True(t, pl.Playing)

	linac := f.channels.last()
	require.Eventually(t, func() bool { return len(linac.Sent()) == 2 && linac.Confirms() == 2 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		pl, err := f.svc.GetPlaylist(info.SessionID)
		return err == nil && len(pl.Fields) == 0
	}, 5*time.Second, time.Millisecond)

	muValue, _ := linac.Sent()[0].Value(efs.TagMUs.Code(), 0)
	assert.Equal(t, "25", muValue)
}

func TestEnqueueFilesReportsBadPaths(t *testing.T) {
	f := newServiceFixture(t, sim.Config{})
	info := f.connect(t, "192.168.30.1")

	_, err := f.svc.EnqueueFiles(models.FilesRequest{SessionID: info.SessionID, Paths: []string{"plan.rtp"}})
	assert.Error(t, err)

	_, err = f.svc.EnqueueFiles(models.FilesRequest{SessionID: "missing", Paths: []string{"a.efs"}})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStartSequence(t *testing.T) {
	f := newServiceFixture(t, sim.Config{})
	info := f.connect(t, "192.168.30.1")
	writeEFS(t, f.dir, "AP")

	yaml := "sequences:\n" +
		"  - name: Output\n    type: QA\n    beams:\n      - filename: Beam_AP.efs\n        repeats: 2\n" +
		"  - name: Broken\n    type: QA\n    beams:\n      - filename: Beam_None.efs\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "sequences.yaml"), []byte(yaml), 0o644))
	require.NoError(t, f.svc.catalog.Reload())
	require.Len(t, f.svc.Sequences(), 1)

	pl, err := f.svc.StartSequence(models.SequenceRequest{SessionID: info.SessionID, Name: "Output"})
	require.NoError(t, err)
	require.Len(t, pl.Fields, 2)
	assert.Equal(t, "Beam_AP", pl.Fields[0].Name)
	assert.True(t, pl.Fields[0].Current)
	assert.True(t, pl.Playing)

	_, err = f.svc.StartSequence(models.SequenceRequest{SessionID: info.SessionID, Name: "Broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Beam_None.efs")

	_, err = f.svc.StartSequence(models.SequenceRequest{SessionID: info.SessionID, Name: "Nope"})
	assert.ErrorIs(t, err, ErrSequenceNotFound)
}

func TestControlActions(t *testing.T) {
	f := newServiceFixture(t, sim.Config{})
	info := f.connect(t, "192.168.30.1")
	var paths []string
	for i := 0; i < 3; i++ {
		paths = append(paths, writeEFS(t, f.dir, fmt.Sprint(i)))
	}
	_, err := f.svc.EnqueueFiles(models.FilesRequest{SessionID: info.SessionID, Paths: paths})
	require.NoError(t, err)

	pl, err := f.svc.Control(info.SessionID, "Skip")
	require.NoError(t, err)
	assert.Equal(t, 1, pl.Cursor)
	assert.True(t, pl.Playing)

	pl, err = f.svc.Control(info.SessionID, ActionPause)
	require.NoError(t, err)
	assert.False(t, pl.Playing)

	pl, err = f.svc.Control(info.SessionID, ActionRestart)
	require.NoError(t, err)
	assert.Equal(t, 0, pl.Cursor)

	pl, err = f.svc.Control(info.SessionID, ActionStop)
	require.NoError(t, err)
	assert.Empty(t, pl.Fields)
	assert.False(t, pl.Playing)

	_, err = f.svc.Control(info.SessionID, "eject")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
