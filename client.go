package linac

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/iwtcode/icomService/pkg/converter"
	"github.com/iwtcode/icomService/pkg/icom"
	"github.com/iwtcode/icomService/pkg/icom/sim"
	"github.com/iwtcode/icomService/pkg/sequencer"
	"github.com/sirupsen/logrus"
)

// Client является основной точкой входа для взаимодействия с библиотекой.
type Client struct {
	session *sequencer.Session
	config  *Config
	logger  *logrus.Logger
	linac   *sim.Linac
}

// New создает и возвращает новый экземпляр клиента.
// Соединение с LINAC открывает Connect.
func New(cfg *Config) (*Client, error) {
	logger := NewLogrus(cfg.LogLevel)

	var (
		control icom.ControlChannel
		monitor icom.MonitorChannel
		model   *sim.Linac
	)
	if cfg.Simulator {
		model = sim.New(sim.Config{AutoStart: true, StepDelay: 100 * time.Millisecond})
		control, monitor = model, model.Monitor()
		logger.Warn("Using simulated LINAC")
	} else {
		binding, err := icom.Native()
		if err != nil {
			return nil, fmt.Errorf("iCOM client unavailable: %w", err)
		}
		control, monitor = binding, binding.Monitor()
	}

	session := sequencer.NewSession(sequencer.Config{
		Address:        cfg.IP,
		MachineName:    cfg.MachineName,
		ControlTimeout: time.Duration(cfg.ControlTimeoutMs) * time.Millisecond,
		MonitorTimeout: time.Duration(cfg.MonitorTimeoutMs) * time.Millisecond,
		PollTimeout:    time.Duration(cfg.PollTimeoutMs) * time.Millisecond,
		SettleDelay:    time.Duration(cfg.SettleDelayMs) * time.Millisecond,
		QAPatientKey:   cfg.QAPatientKey,
		SiteCodes:      cfg.SiteCodes,
	}, control, monitor, sequencer.WithLogger(NewSequencerLogger(logger.WithField("linac", cfg.MachineName))))

	return &Client{
		session: session,
		config:  cfg,
		logger:  logger,
		linac:   model,
	}, nil
}

// NewLogrus создает logrus логгер с уровнем из конфигурации.
// "off" и "none" отключают вывод.
func NewLogrus(level string) *logrus.Logger {
	logger := logrus.New()

	if level == "off" || level == "none" {
		logger.SetOutput(io.Discard)
	} else {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		logger.SetLevel(lvl)
		logger.SetOutput(os.Stdout)
	}

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

// Connect открывает каналы FX и VX и запускает доставку.
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Close закрывает соединение с LINAC.
func (c *Client) Close() error {
	return c.session.Close()
}

// GetLogger возвращает используемый логгер.
func (c *Client) GetLogger() *logrus.Logger {
	return c.logger
}

// Session возвращает сессию доставки.
func (c *Client) Session() *sequencer.Session {
	return c.session
}

// Simulator возвращает модель LINAC, если клиент работает без iCOMClient.
func (c *Client) Simulator() *sim.Linac {
	return c.linac
}

// Status возвращает текст состояния для оператора.
func (c *Client) Status() string {
	return c.session.Status()
}

// ConvertPlan конвертирует план в EFS файлы. Пустой outDir - каталог из
// конфигурации, затем каталог плана.
func (c *Client) ConvertPlan(path, outDir string) (*converter.Result, error) {
	if outDir == "" {
		outDir = c.config.OutputDir
	}
	res, err := converter.ConvertFile(path, outDir)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Files {
		c.logger.WithFields(logrus.Fields{
			"beam":      f.BeamName,
			"technique": f.Technique.String(),
			"mu":        f.TotalMU,
		}).Infof("Beam written to %s", f.Path)
	}
	for _, e := range res.Failures {
		c.logger.WithError(e).Error("Beam not converted")
	}
	return res, nil
}

// EnqueueFiles добавляет в очередь EFS файлы и планы и запускает воспроизведение.
func (c *Client) EnqueueFiles(paths []string, ov sequencer.Overrides) error {
	fields, err := sequencer.FieldsFromFiles(paths, c.config.OutputDir, ov)
	if len(fields) > 0 {
		c.session.Enqueue(fields...)
	}
	return err
}

// Play, Stop, Skip, Previous, Repeat, Restart - действия оператора.
func (c *Client) Play()           { c.session.Play() }
func (c *Client) Stop() error     { return c.session.Stop() }
func (c *Client) Skip() error     { return c.session.Skip() }
func (c *Client) Previous() error { return c.session.Previous() }
func (c *Client) Repeat() error   { return c.session.Repeat() }
func (c *Client) Restart() error  { return c.session.Restart() }
