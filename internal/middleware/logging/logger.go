package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Enabled    bool   // Включено ли логирование
	Level      string // DEBUG, INFO, WARN, ERROR
	LogsDir    string // Директория для логов
	SavingDays uint   // Сколько дней хранить логи
}

var levels = map[string]int{
	"DEBUG": 4,
	"INFO":  3,
	"WARN":  2,
	"ERROR": 1,
}

// output - общий для логгера и его потомков с префиксами вывод.
// Файл переоткрывается при смене даты.
type output struct {
	mu     sync.Mutex
	cfg    *Config
	stdout io.Writer
	file   *os.File
	day    string
	logger *log.Logger
}

func (o *output) println(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotate(time.Now())
	o.logger.Println(line)
}

// rotate вызывается под o.mu.
func (o *output) rotate(now time.Time) {
	day := now.Format("2006-01-02")
	if day == o.day {
		return
	}
	o.day = day

	var w io.Writer = o.stdout
	if o.cfg.Enabled && o.cfg.LogsDir != "" {
		if err := os.MkdirAll(o.cfg.LogsDir, 0755); err == nil {
			logFile := filepath.Join(o.cfg.LogsDir, day+".log")
			if file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
				if o.file != nil {
					_ = o.file.Close()
				}
				o.file = file
				w = io.MultiWriter(o.stdout, file)
			}
		}
	}
	if o.logger == nil {
		o.logger = log.New(w, "", log.LstdFlags)
		return
	}
	o.logger.SetOutput(w)
}

func (o *output) close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	return err
}

type Logger struct {
	config *Config
	out    *output
	prefix string
}

func NewLogger(cfg *Config, prefix string) *Logger {
	return newLogger(cfg, prefix, os.Stdout)
}

func newLogger(cfg *Config, prefix string, stdout io.Writer) *Logger {
	out := &output{cfg: cfg, stdout: stdout}
	out.rotate(time.Now())

	l := &Logger{
		config: cfg,
		out:    out,
		prefix: prefix,
	}

	if cfg.SavingDays > 0 && cfg.LogsDir != "" {
		go l.cleanOldLogs()
	}

	return l
}

func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := l.prefix
	if newPrefix != "" {
		newPrefix += " "
	}
	newPrefix += "[" + prefix + "]"

	return &Logger{
		config: l.config,
		out:    l.out,
		prefix: newPrefix,
	}
}

func (l *Logger) cleanOldLogs() {
	l.removeOldLogs(time.Now())
	for now := range time.Tick(24 * time.Hour) {
		l.removeOldLogs(now)
	}
}

func (l *Logger) removeOldLogs(now time.Time) {
	files, err := os.ReadDir(l.config.LogsDir)
	if err != nil {
		l.Error("Failed to read logs directory", "error", err)
		return
	}

	cutoff := now.AddDate(0, 0, -int(l.config.SavingDays))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".log" {
			continue
		}
		if info, err := file.Info(); err == nil && info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(l.config.LogsDir, file.Name())); err != nil {
				l.Error("Failed to delete old log file", "file", file.Name(), "error", err)
			}
		}
	}
}

func (l *Logger) log(level, msg string, fields ...interface{}) {
	if !l.ShouldLog(level) {
		return
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("[%s] %s %s", level, l.prefix, msg))
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		val := "?"
		if i+1 < len(fields) {
			val = fmt.Sprint(fields[i+1])
		}
		builder.WriteString(fmt.Sprintf(" %s=%s", key, val))
	}

	l.out.println(builder.String())
}

func (l *Logger) ShouldLog(level string) bool {
	if !l.config.Enabled {
		return false
	}

	currentLevel := levels[strings.ToUpper(l.config.Level)]
	if currentLevel == 0 {
		currentLevel = 3 // INFO по умолчанию
	}

	return levels[strings.ToUpper(level)] <= currentLevel
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log("DEBUG", msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log("INFO", msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log("WARN", msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log("ERROR", msg, fields...) }

func (l *Logger) Close() error {
	return l.out.close()
}
