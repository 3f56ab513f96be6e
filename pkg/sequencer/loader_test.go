package sequencer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwtcode/icomService/pkg/efs"
)

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }

// writeField сохраняет минимальный EFS файл поля.
func writeField(t *testing.T, dir, name string) string {
	t.Helper()
	f := efs.NewFile()
	f.Add(efs.TagMUs, 0, "100.0")
	f.Add(efs.TagLinac, 0, "6480")
	f.Add(efs.TagPatientID, 0, "12345")
	f.Add(efs.TagPatientName, 0, "DOE^JOHN")
	f.Add(efs.TagPlanName, 0, "DCM2EFS")
	f.Add(efs.TagBeamName, 0, name)
	f.Add(efs.TagRadType, 1, "XRAY")
	f.Add(efs.TagEnergy, 1, "6 MV")
	f.Add(efs.TagDoseRate, 1, "600")
	f.Add(efs.TagMeterSet, 1, "0.0")
	f.Add(efs.TagMeterSet, 2, "100.0")

	path := filepath.Join(dir, "Beam_"+name+efs.Extension)
	require.NoError(t, f.Save(path))
	return path
}

func valueOf(records []efs.Record, tag efs.Tag, cp int) string {
	for _, r := range records {
		if r.Code == tag.Code() && r.ControlPoint == cp {
			return r.Value
		}
	}
	return ""
}

func TestLoaderForcesMachineName(t *testing.T) {
	l := &Loader{MachineName: "TB1"}
	records := []efs.Record{
		{Code: efs.TagLinac.Code(), Value: "6480"},
		{Code: efs.TagPatientID.Code(), Value: "12345"},
	}

	out := l.Apply(records, Overrides{})
	assert.Equal(t, "TB1", valueOf(out, efs.TagLinac, 0))
	assert.Equal(t, "12345", valueOf(out, efs.TagPatientID, 0))
	// исходные записи не меняются
	assert.Equal(t, "6480", records[0].Value)
}

func TestLoaderOverridesReplaceFileValues(t *testing.T) {
	l := &Loader{MachineName: "TB1"}
	records := []efs.Record{
		{Code: efs.TagMUs.Code(), Value: "100.0"},
		{Code: efs.TagPatientID.Code(), Value: "12345"},
		{Code: efs.TagPatientName.Code(), Value: "DOE^JOHN"},
		{Code: efs.TagDoseRate.Code(), ControlPoint: 1, Value: "600"},
	}

	out := l.Apply(records, Overrides{
		MU:          floatPtr(42.5),
		DoseRate:    floatPtr(400),
		PatientID:   strPtr("777"),
		PatientName: strPtr("QA^PHANTOM"),
	})
	assert.Equal(t, "42.5", valueOf(out, efs.TagMUs, 0))
	assert.Equal(t, "400", valueOf(out, efs.TagDoseRate, 1))
	assert.Equal(t, "777", valueOf(out, efs.TagPatientID, 0))
	assert.Equal(t, "QA^PHANTOM", valueOf(out, efs.TagPatientName, 0))
}

func TestLoaderDoesNotAddMissingRecords(t *testing.T) {
	l := &Loader{MachineName: "TB1"}
	records := []efs.Record{{Code: efs.TagLinac.Code(), Value: "6480"}}

	out := l.Apply(records, Overrides{MU: floatPtr(10), DoseRate: floatPtr(300)})
	require.Len(t, out, 1)
	assert.Equal(t, "TB1", out[0].Value)
}

func TestLoaderQAPatientSiteCode(t *testing.T) {
	l := &Loader{
		MachineName: "6480",
		SiteCodes:   map[string]string{"6480": "PO9"},
	}
	records := []efs.Record{
		{Code: efs.TagPatientID.Code(), Value: "12345"},
		{Code: efs.TagPatientName.Code(), Value: "DOE^JOHN"},
	}

	out := l.Apply(records, Overrides{
		PatientID:   strPtr(DefaultQAPatientKey),
		PatientName: strPtr(DefaultQAPatientKey),
	})
	assert.Equal(t, "1QASNCPO9", valueOf(out, efs.TagPatientID, 0))
	assert.Equal(t, "1QASNCPO9", valueOf(out, efs.TagPatientName, 0))

	// обычный пациент без суффикса
	out = l.Apply(records, Overrides{PatientID: strPtr("1QASNC-2")})
	assert.Equal(t, "1QASNC-2", valueOf(out, efs.TagPatientID, 0))
}

func TestLoaderQAPatientUnknownMachine(t *testing.T) {
	l := &Loader{MachineName: "TB9", QAPatientKey: "QA", SiteCodes: map[string]string{"6480": "PO9"}}
	out := l.Apply([]efs.Record{{Code: efs.TagPatientID.Code(), Value: "1"}}, Overrides{PatientID: strPtr("QA")})
	assert.Equal(t, "QA", valueOf(out, efs.TagPatientID, 0))
}

func TestLoaderLoad(t *testing.T) {
	path := writeField(t, t.TempDir(), "AP")
	l := &Loader{MachineName: "TB1"}

	records, err := l.Load(Field{Name: "AP", Filename: path, Overrides: Overrides{MU: floatPtr(50)}})
	require.NoError(t, err)
	assert.Equal(t, "TB1", valueOf(records, efs.TagLinac, 0))
	assert.Equal(t, "50", valueOf(records, efs.TagMUs, 0))
	assert.Equal(t, "100.0", valueOf(records, efs.TagMeterSet, 2))
}

func TestLoaderLoadMissingFile(t *testing.T) {
	l := &Loader{MachineName: "TB1"}
	_, err := l.Load(Field{Name: "AP", Filename: filepath.Join(t.TempDir(), "missing.efs")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `load field "AP"`)
}
