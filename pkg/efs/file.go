// Package efs реализует текстовый формат полей iCOM (EFS): теги, записи,
// кодирование лепестков MLC, чтение и запись файлов.
package efs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extension - расширение файлов полей.
const Extension = ".efs"

// File - упорядоченный список записей одного поля. Пополняется только
// добавлением в конец; после сохранения не изменяется.
type File struct {
	records []Record
}

// NewFile создает пустой файл поля.
func NewFile() *File {
	return &File{}
}

// Add добавляет запись тега перечисления.
func (f *File) Add(tag Tag, cp int, value string) {
	f.records = append(f.records, Record{Code: tag.Code(), ControlPoint: cp, Value: value})
}

// AddLeaves добавляет записи лепестков для контрольной точки.
func (f *File) AddLeaves(cp int, leaves []LeafRecord) {
	for _, l := range leaves {
		f.records = append(f.records, Record{Code: l.Code, ControlPoint: cp, Value: FormatFloat(l.Value)})
	}
}

// Append добавляет произвольную запись.
func (f *File) Append(r Record) {
	f.records = append(f.records, r)
}

// Len возвращает число записей.
func (f *File) Len() int { return len(f.records) }

// Records возвращает копию записей в порядке записи.
func (f *File) Records() []Record {
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out
}

// Block возвращает записи одной контрольной точки (0 - заголовок).
func (f *File) Block(cp int) []Record {
	var out []Record
	for _, r := range f.records {
		if r.ControlPoint == cp {
			out = append(out, r)
		}
	}
	return out
}

// ControlPoints возвращает число блоков контрольных точек (без заголовка).
func (f *File) ControlPoints() int {
	max := 0
	for _, r := range f.records {
		if r.ControlPoint > max {
			max = r.ControlPoint
		}
	}
	return max
}

// Value возвращает значение первой записи тега в контрольной точке.
func (f *File) Value(tag Tag, cp int) (string, bool) {
	code := tag.Code()
	for _, r := range f.records {
		if r.Code == code && r.ControlPoint == cp {
			return r.Value, true
		}
	}
	return "", false
}

// WriteTo пишет записи построчно.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, r := range f.records {
		n, err := bw.WriteString(r.String() + "\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// Save атомарно сохраняет файл: либо файл целиком, либо ничего.
func (f *File) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("efs: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("efs: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("efs: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("efs: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("efs: rename to %s: %w", path, err)
	}
	return nil
}

// Parse читает EFS из потока. Пустые строки пропускаются.
func Parse(r io.Reader) (*File, error) {
	f := NewFile()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		f.records = append(f.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load читает EFS файл с диска.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("efs: %s: %w", path, err)
	}
	return f, nil
}

// IsEFS проверяет расширение пути без учета регистра.
func IsEFS(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
