package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&Config{Enabled: true, Level: "INFO"}, "App", &buf)
	fx := l.WithPrefix("FX")

	fx.Debug("hidden")
	fx.Info("Field sent successfully", "field", "AP", "dangling")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] App [FX] Field sent successfully field=AP dangling=?")
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&Config{Enabled: false, Level: "DEBUG"}, "App", &buf)
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestLoggerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := newLogger(&Config{Enabled: true, Level: "DEBUG", LogsDir: dir}, "App", &buf)
	l.Warn("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[WARN] App to file")
}

func TestRemoveOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2020-01-01.log")
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(keep, past, past))

	l := &Logger{config: &Config{Enabled: false, LogsDir: dir, SavingDays: 7}, out: &output{cfg: &Config{}}}
	l.removeOldLogs(time.Now())

	assert.NoFileExists(t, old)
	assert.FileExists(t, keep)
}
