package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/domain/entities"
	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/internal/middleware/swagger"
	"github.com/iwtcode/icomService/internal/services/linac_service"
	"github.com/iwtcode/icomService/pkg/sequencer"
)

type fakeUsecases struct {
	lastAction string
	lastLimit  int
	enqueueErr error
}

func (f *fakeUsecases) CreateConnection(req models.ConnectionRequest) (*models.ConnectionInfo, error) {
	if req.IP == "192.168.30.1" {
		return nil, fmt.Errorf("%w: '%s' с SessionID: s1", linac_service.ErrAlreadyActive, req.IP)
	}
	return &models.ConnectionInfo{SessionID: "s2", IP: req.IP, Connected: true}, nil
}

func (f *fakeUsecases) RestoreConnection(entities.LinacConnection) (*models.ConnectionInfo, error) {
	return nil, nil
}

func (f *fakeUsecases) GetConnection(sessionID string) (*models.ConnectionInfo, error) {
	if sessionID != "s1" {
		return nil, linac_service.ErrSessionNotFound
	}
	return &models.ConnectionInfo{SessionID: "s1"}, nil
}

func (f *fakeUsecases) GetAllConnections() []*models.ConnectionInfo {
	return []*models.ConnectionInfo{{SessionID: "s1"}}
}

func (f *fakeUsecases) DeleteConnection(string) error { return nil }

func (f *fakeUsecases) GetPlaylist(sessionID string) (*models.PlaylistInfo, error) {
	return &models.PlaylistInfo{SessionID: sessionID}, nil
}

func (f *fakeUsecases) EnqueueFiles(req models.FilesRequest) (*models.PlaylistInfo, error) {
	return &models.PlaylistInfo{SessionID: req.SessionID, Playing: true}, f.enqueueErr
}

func (f *fakeUsecases) StartSequence(req models.SequenceRequest) (*models.PlaylistInfo, error) {
	return nil, fmt.Errorf("%w: '%s'", linac_service.ErrSequenceNotFound, req.Name)
}

func (f *fakeUsecases) Control(sessionID, action string) (*models.PlaylistInfo, error) {
	f.lastAction = action
	switch action {
	case "eject":
		return nil, linac_service.ErrUnknownAction
	case "skip":
		return nil, fmt.Errorf("действие 'skip' не выполнено: %w", sequencer.ErrNotConnected)
	}
	return &models.PlaylistInfo{SessionID: sessionID}, nil
}

func (f *fakeUsecases) GetSequences() []models.SequenceGroup {
	return []models.SequenceGroup{{Type: "QA"}}
}

func (f *fakeUsecases) ConvertPlan(models.ConvertRequest) (*models.ConvertResult, error) {
	return &models.ConvertResult{}, nil
}

func (f *fakeUsecases) GetDeliveries(sessionID string, limit int) ([]entities.DeliveryRecord, error) {
	f.lastLimit = limit
	return []entities.DeliveryRecord{{SessionID: sessionID, Result: entities.DeliveryDelivered}}, nil
}

func newRouter(uc *fakeUsecases) http.Handler {
	logger := logging.NewLogger(&logging.Config{Enabled: false}, "TEST")
	return ProvideRouter(NewHandler(uc, logger), &config.AppConfig{GinMode: "test"}, &swagger.Config{})
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestConnectionRoutes(t *testing.T) {
	h := newRouter(&fakeUsecases{})

	rec, body := do(t, h, http.MethodPost, "/api/v1/connect", models.ConnectionRequest{IP: "192.168.30.2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/connect", models.ConnectionRequest{IP: "192.168.30.1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/connect", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/api/v1/connect", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["pool_size"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/connect/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaylistRoutes(t *testing.T) {
	uc := &fakeUsecases{}
	h := newRouter(uc)
	session := models.SessionRequest{SessionID: "s1"}

	rec, _ := do(t, h, http.MethodPost, "/api/v1/playlist/control/restart", session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "restart", uc.lastAction)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/playlist/control/eject", session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/playlist/control/skip", session)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/playlist/sequence", models.SequenceRequest{SessionID: "s1", Name: "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	uc.enqueueErr = fmt.Errorf("часть файлов не добавлена: unsupported field file a.txt")
	rec, body := do(t, h, http.MethodPost, "/api/v1/playlist/files", models.FilesRequest{SessionID: "s1", Paths: []string{"a.txt"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotNil(t, body["playlist"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/playlist/files", models.FilesRequest{SessionID: "s1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveriesRoute(t *testing.T) {
	uc := &fakeUsecases{}
	h := newRouter(uc)

	rec, body := do(t, h, http.MethodGet, "/api/v1/deliveries/s1?limit=5", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, uc.lastLimit)
	assert.Len(t, body["deliveries"], 1)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/deliveries/s1?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwaggerRedirect(t *testing.T) {
	logger := logging.NewLogger(&logging.Config{Enabled: false}, "TEST")
	h := ProvideRouter(NewHandler(&fakeUsecases{}, logger), &config.AppConfig{GinMode: "test"}, &swagger.Config{Enabled: true, Path: "docs/"})

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/docs/index.html", rec.Header().Get("Location"))
}
