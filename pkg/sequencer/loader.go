package sequencer

import (
	"fmt"

	"github.com/iwtcode/icomService/pkg/efs"
)

// DefaultQAPatientKey - идентификатор QA пациента, к которому добавляется код площадки.
const DefaultQAPatientKey = "1QASNC"

// Loader читает EFS файл поля и применяет подмены.
type Loader struct {
	// MachineName всегда записывается в тег LINAC.
	MachineName string
	// QAPatientKey - значение пациента, к которому добавляется код площадки.
	QAPatientKey string
	// SiteCodes - код площадки по имени аппарата.
	SiteCodes map[string]string
}

// Load читает файл поля и возвращает записи с подменами.
func (l *Loader) Load(f Field) ([]efs.Record, error) {
	file, err := efs.Load(f.Filename)
	if err != nil {
		return nil, fmt.Errorf("load field %q: %w", f.Name, err)
	}
	return l.Apply(file.Records(), f.Overrides), nil
}

// Apply подменяет значения записей. Имя аппарата подменяется всегда, остальные
// четыре тега - только если подмена задана. Записи, которых нет в файле,
// не добавляются.
func (l *Loader) Apply(records []efs.Record, ov Overrides) []efs.Record {
	var (
		linac       = efs.TagLinac.Code()
		patientName = efs.TagPatientName.Code()
		patientID   = efs.TagPatientID.Code()
		doseRate    = efs.TagDoseRate.Code()
		mu          = efs.TagMUs.Code()
	)

	out := make([]efs.Record, len(records))
	for i, r := range records {
		switch {
		case r.Code == linac:
			r.Value = l.MachineName
		case r.Code == patientName && ov.PatientName != nil:
			r.Value = l.patient(*ov.PatientName)
		case r.Code == patientID && ov.PatientID != nil:
			r.Value = l.patient(*ov.PatientID)
		case r.Code == doseRate && ov.DoseRate != nil:
			r.Value = efs.FormatNumber(*ov.DoseRate)
		case r.Code == mu && ov.MU != nil:
			r.Value = efs.FormatNumber(*ov.MU)
		}
		out[i] = r
	}
	return out
}

func (l *Loader) patient(v string) string {
	key := l.QAPatientKey
	if key == "" {
		key = DefaultQAPatientKey
	}
	if v != key {
		return v
	}
	return v + l.SiteCodes[l.MachineName]
}
