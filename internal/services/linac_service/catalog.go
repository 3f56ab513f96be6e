package linac_service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/pkg/sequencer"
)

// reloadDelay - пауза после последнего события файла перед перечитыванием.
// Редакторы пишут файл в несколько приемов.
const reloadDelay = 200 * time.Millisecond

type catalogFile struct {
	Sequences []models.Sequence `yaml:"sequences"`
}

// Catalog - каталог последовательностей из YAML файла. Перечитывается при
// изменении файла; при ошибке разбора остается предыдущая версия.
type Catalog struct {
	path   string
	logger *logging.Logger

	mu        sync.RWMutex
	sequences []models.Sequence

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewCatalog читает каталог и начинает следить за файлом. Отсутствующий
// файл - пустой каталог.
func NewCatalog(cfg *config.AppConfig, logger *logging.Logger) (*Catalog, error) {
	path, err := filepath.Abs(cfg.SequencesFile)
	if err != nil {
		return nil, fmt.Errorf("sequences file %q: %w", cfg.SequencesFile, err)
	}
	c := &Catalog{
		path:   path,
		logger: logger.WithPrefix("CATALOG"),
		done:   make(chan struct{}),
	}

	if err := c.Reload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		c.logger.Warn("Sequences file not found, catalog is empty", "path", path)
	}

	if err := c.watch(); err != nil {
		c.logger.Warn("Sequences file is not watched", "path", path, "error", err)
	}
	return c, nil
}

// Reload перечитывает файл каталога.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	sequences, err := parseCatalog(data, filepath.Dir(c.path))
	if err != nil {
		return fmt.Errorf("sequences file %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.sequences = sequences
	c.mu.Unlock()
	c.logger.Info("Sequences loaded", "path", c.path, "count", len(sequences))
	return nil
}

// parseCatalog разбирает и проверяет каталог. Относительные пути полей
// считаются от каталога файла.
func parseCatalog(data []byte, baseDir string) ([]models.Sequence, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(file.Sequences))
	out := make([]models.Sequence, 0, len(file.Sequences))
	for i, seq := range file.Sequences {
		if seq.Name == "" {
			return nil, fmt.Errorf("sequence #%d has no name", i+1)
		}
		if seen[seq.Name] {
			return nil, fmt.Errorf("duplicate sequence %q", seq.Name)
		}
		seen[seq.Name] = true
		if len(seq.Beams) == 0 {
			return nil, fmt.Errorf("sequence %q has no beams", seq.Name)
		}
		for j := range seq.Beams {
			b := &seq.Beams[j]
			if b.Filename == "" {
				return nil, fmt.Errorf("sequence %q beam #%d has no filename", seq.Name, j+1)
			}
			if !filepath.IsAbs(b.Filename) {
				b.Filename = filepath.Join(baseDir, b.Filename)
			}
			if b.Name == "" {
				b.Name = strings.TrimSuffix(filepath.Base(b.Filename), filepath.Ext(b.Filename))
			}
			if b.Repeats <= 0 {
				b.Repeats = 1
			}
		}
		out = append(out, seq)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Sequences возвращает последовательности, сгруппированные по типу.
// Группы и последовательности внутри групп отсортированы по имени.
func (c *Catalog) Sequences() []models.SequenceGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()

	index := make(map[string]int)
	var groups []models.SequenceGroup
	for _, seq := range c.sequences {
		i, ok := index[seq.Type]
		if !ok {
			i = len(groups)
			index[seq.Type] = i
			groups = append(groups, models.SequenceGroup{Type: seq.Type})
		}
		groups[i].Sequences = append(groups[i].Sequences, seq)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Type) < strings.ToLower(groups[j].Type)
	})
	return groups
}

// Sequence возвращает последовательность по имени.
func (c *Catalog) Sequence(name string) (models.Sequence, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, seq := range c.sequences {
		if seq.Name == name {
			return seq, true
		}
	}
	return models.Sequence{}, false
}

// SequenceFields разворачивает последовательность в поля очереди: каждый
// пучок повторяется Repeats раз.
func SequenceFields(seq models.Sequence) []sequencer.Field {
	var fields []sequencer.Field
	for _, b := range seq.Beams {
		for i := 0; i < b.Repeats; i++ {
			fields = append(fields, sequencer.Field{
				Name:     b.Name,
				Filename: b.Filename,
				Overrides: sequencer.Overrides{
					MU:          b.MU,
					DoseRate:    b.DoseRate,
					PatientID:   b.PatientID,
					PatientName: b.PatientName,
				},
			})
		}
	}
	return fields
}

// watch следит за каталогом файла: редакторы заменяют файл целиком.
func (c *Catalog) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(c.path), err)
	}
	c.watcher = watcher

	c.wg.Add(1)
	go c.watchLoop()
	return nil
}

func (c *Catalog) watchLoop() {
	defer c.wg.Done()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				c.logger.Debug("Sequences file changed", "event", event.Op.String())
				timer.Reset(reloadDelay)
			}
		case <-timer.C:
			if err := c.Reload(); err != nil {
				c.logger.Error("Failed to reload sequences, keeping previous catalog", "error", err)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("fsnotify error", "error", err)
		}
	}
}

// Close останавливает наблюдение за файлом.
func (c *Catalog) Close() error {
	if c.watcher == nil {
		return nil
	}
	close(c.done)
	err := c.watcher.Close()
	c.wg.Wait()
	c.watcher = nil
	return err
}
