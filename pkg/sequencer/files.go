package sequencer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iwtcode/icomService/pkg/converter"
	"github.com/iwtcode/icomService/pkg/efs"
)

// Расширения файлов планов. RTP читается загрузчиком плана и отклоняется им.
const (
	PlanExtension   = ".dcm"
	RTPlanExtension = ".rtp"
)

// FileField - имя поля, добавленного из файла без каталога последовательностей.
const FileField = "File Field"

// FieldsFromFiles строит поля из списка файлов: EFS добавляется как есть,
// план DICOM конвертируется в outDir (пустой - каталог плана), по полю на пучок.
// Пучки, которые не удалось закодировать, пропускаются; их ошибки возвращаются
// вместе с полями.
func FieldsFromFiles(paths []string, outDir string, ov Overrides) ([]Field, error) {
	var (
		out      []Field
		failures []error
	)
	for _, path := range paths {
		switch {
		case efs.IsEFS(path):
			out = append(out, Field{Name: FileField, Filename: path, Overrides: ov})
		case isPlan(path):
			res, err := converter.ConvertFile(path, outDir)
			if err != nil {
				return nil, err
			}
			for _, f := range res.Files {
				out = append(out, Field{Name: FileField, Filename: f.Path, Overrides: ov})
			}
			if err := res.Err(); err != nil {
				failures = append(failures, err)
			}
		default:
			return nil, fmt.Errorf("unsupported field file %s", path)
		}
	}
	if len(failures) > 0 {
		return out, fmt.Errorf("plan conversion: %w", errors.Join(failures...))
	}
	return out, nil
}

func isPlan(path string) bool {
	ext := filepath.Ext(path)
	return strings.EqualFold(ext, PlanExtension) || strings.EqualFold(ext, RTPlanExtension)
}
