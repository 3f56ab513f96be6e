package linac_service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/sequencer"
)

// Действия оператора над очередью.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionStop     = "stop"
	ActionSkip     = "skip"
	ActionPrevious = "previous"
	ActionRepeat   = "repeat"
	ActionRestart  = "restart"
)

// ErrUnknownAction - неизвестное действие над очередью.
var ErrUnknownAction = errors.New("неизвестное действие")

// ErrSequenceNotFound - последовательности нет в каталоге.
var ErrSequenceNotFound = errors.New("последовательность не найдена")

type PlaylistManager struct {
	connMgr   *ConnectionManager
	catalog   *Catalog
	converter *PlanConverter
	logger    *logging.Logger
}

func NewPlaylistManager(connMgr *ConnectionManager, catalog *Catalog, converter *PlanConverter, logger *logging.Logger) *PlaylistManager {
	return &PlaylistManager{
		connMgr:   connMgr,
		catalog:   catalog,
		converter: converter,
		logger:    logger.WithPrefix("PLAYLIST"),
	}
}

func (pm *PlaylistManager) GetPlaylist(sessionID string) (*models.PlaylistInfo, error) {
	session, err := pm.connMgr.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return playlistInfo(sessionID, session), nil
}

// EnqueueFiles добавляет EFS файлы и планы DICOM в очередь и запускает
// воспроизведение. Планы конвертируются; поля неудачных пучков пропускаются,
// но ошибка возвращается вместе с состоянием очереди.
func (pm *PlaylistManager) EnqueueFiles(req models.FilesRequest) (*models.PlaylistInfo, error) {
	session, err := pm.connMgr.Session(req.SessionID)
	if err != nil {
		return nil, err
	}

	var (
		paths []string
		errs  []error
	)
	for _, p := range req.Paths {
		ext := strings.ToLower(filepath.Ext(p))
		if ext != sequencer.PlanExtension && ext != sequencer.RTPlanExtension {
			paths = append(paths, p)
			continue
		}
		res, err := pm.converter.Convert(p, "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, f := range res.Files {
			paths = append(paths, f.Path)
		}
		errs = append(errs, res.Failures...)
	}

	fields, err := sequencer.FieldsFromFiles(paths, "", overrides(req.OverrideValues))
	errs = append(errs, err)
	if len(fields) > 0 {
		session.Enqueue(fields...)
		pm.logger.Info("Fields enqueued", "sessionID", req.SessionID, "count", len(fields))
	}

	info := playlistInfo(req.SessionID, session)
	if err := errors.Join(errs...); err != nil {
		return info, fmt.Errorf("часть файлов не добавлена: %w", err)
	}
	return info, nil
}

// StartSequence добавляет в очередь последовательность каталога.
func (pm *PlaylistManager) StartSequence(req models.SequenceRequest) (*models.PlaylistInfo, error) {
	session, err := pm.connMgr.Session(req.SessionID)
	if err != nil {
		return nil, err
	}
	seq, ok := pm.catalog.Sequence(req.Name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrSequenceNotFound, req.Name)
	}

	var missing []string
	for _, b := range seq.Beams {
		if _, err := os.Stat(b.Filename); err != nil || !efs.IsEFS(b.Filename) {
			missing = append(missing, b.Filename)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("последовательность '%s' ссылается на отсутствующие EFS файлы: %s", seq.Name, strings.Join(missing, ", "))
	}

	fields := SequenceFields(seq)
	session.Enqueue(fields...)
	pm.logger.Info("Sequence enqueued", "sessionID", req.SessionID, "sequence", seq.Name, "fields", len(fields))
	return playlistInfo(req.SessionID, session), nil
}

// Control выполняет действие оператора над очередью сессии.
func (pm *PlaylistManager) Control(sessionID, action string) (*models.PlaylistInfo, error) {
	session, err := pm.connMgr.Session(sessionID)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(action) {
	case ActionPlay:
		session.Play()
	case ActionPause:
		session.Pause()
	case ActionStop:
		err = session.Stop()
	case ActionSkip:
		err = session.Skip()
	case ActionPrevious:
		err = session.Previous()
	case ActionRepeat:
		err = session.Repeat()
	case ActionRestart:
		err = session.Restart()
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownAction, action)
	}
	if err != nil {
		return nil, fmt.Errorf("действие '%s' не выполнено: %w", action, err)
	}

	pm.logger.Info("Playlist action", "sessionID", sessionID, "action", action)
	return playlistInfo(sessionID, session), nil
}

func overrides(ov models.OverrideValues) sequencer.Overrides {
	return sequencer.Overrides{
		MU:          ov.MU,
		DoseRate:    ov.DoseRate,
		PatientID:   ov.PatientID,
		PatientName: ov.PatientName,
	}
}

func playlistInfo(sessionID string, session *sequencer.Session) *models.PlaylistInfo {
	snap := session.Playlist().Snapshot()
	info := &models.PlaylistInfo{
		SessionID: sessionID,
		Playing:   snap.Playing,
		Cursor:    snap.Cursor,
		Status:    session.Status(),
		Fields:    make([]models.FieldInfo, 0, len(snap.Fields)),
	}
	for i, f := range snap.Fields {
		info.Fields = append(info.Fields, models.FieldInfo{
			Index:    i,
			Name:     f.Name,
			Filename: f.Filename,
			Current:  i == snap.Cursor,
			Override: models.OverrideValues{
				MU:          f.Overrides.MU,
				DoseRate:    f.Overrides.DoseRate,
				PatientID:   f.Overrides.PatientID,
				PatientName: f.Overrides.PatientName,
			},
		})
	}
	return info
}
