package linac

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SequencerLogger передает key/value поля секвенсора в logrus.
type SequencerLogger struct {
	entry *logrus.Entry
}

// NewSequencerLogger адаптирует logrus к логгеру секвенсора.
func NewSequencerLogger(entry *logrus.Entry) *SequencerLogger {
	return &SequencerLogger{entry: entry}
}

func (l *SequencerLogger) with(fields []interface{}) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	f := make(logrus.Fields, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if i+1 >= len(fields) {
			f["extra"] = fields[i]
			break
		}
		f[key] = fields[i+1]
	}
	return l.entry.WithFields(f)
}

func (l *SequencerLogger) Debug(msg string, fields ...interface{}) { l.with(fields).Debug(msg) }
func (l *SequencerLogger) Info(msg string, fields ...interface{})  { l.with(fields).Info(msg) }
func (l *SequencerLogger) Warn(msg string, fields ...interface{})  { l.with(fields).Warn(msg) }
func (l *SequencerLogger) Error(msg string, fields ...interface{}) { l.with(fields).Error(msg) }
