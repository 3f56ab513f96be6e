package converter

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/rtplan"
)

func leafBank(v float64) []float64 {
	p := make([]float64, 2*efs.LeavesPerBank)
	for i := range p {
		p[i] = v + float64(i%7)
	}
	return p
}

func fullDevices(yJaw ...float64) []rtplan.DevicePosition {
	return []rtplan.DevicePosition{
		{Type: rtplan.DeviceASYMX, Positions: []float64{-100, 100}},
		{Type: rtplan.DeviceASYMY, Positions: yJaw},
		{Type: rtplan.DeviceMLCX, Positions: leafBank(-10)},
	}
}

func mlcOnly() []rtplan.DevicePosition {
	return []rtplan.DevicePosition{{Type: rtplan.DeviceMLCX, Positions: leafBank(5)}}
}

func testBeam(number int, name string, rotation rtplan.RotationDirection, weights ...float64) rtplan.Beam {
	beam := rtplan.Beam{
		Number:               number,
		Name:                 name,
		Description:          name + " desc",
		TreatmentMachineName: "TB1",
	}
	for i, w := range weights {
		cp := rtplan.ControlPoint{
			Index:                    i,
			CumulativeMetersetWeight: rtplan.Float(w),
			Devices:                  mlcOnly(),
		}
		if i == 0 {
			cp.NominalBeamEnergy = rtplan.Float(6)
			cp.GantryAngle = rtplan.Float(200.7)
			cp.GantryRotation = rotation
			cp.CollimatorAngle = rtplan.Float(350)
			cp.Devices = fullDevices(-50, 60)
		} else if rotation != rtplan.RotationNone {
			cp.GantryAngle = rtplan.Float(200.7 - float64(i)*10)
		}
		beam.ControlPoints = append(beam.ControlPoints, cp)
	}
	return beam
}

func testPlan(beams ...rtplan.Beam) *rtplan.Plan {
	plan := &rtplan.Plan{
		PatientID:   "PAT01",
		PatientName: "DOE^JANE",
		Beams:       beams,
		Meterset:    map[int]float64{},
	}
	for _, b := range beams {
		plan.Meterset[b.Number] = 100
	}
	return plan
}

func TestClassifyTechnique(t *testing.T) {
	static := testBeam(1, "S", rtplan.RotationNone, 0, 1)
	imrt := testBeam(2, "I", rtplan.RotationNone, 0, 0.5, 1)
	vmat := testBeam(3, "V", rtplan.RotationClockwise, 0, 1)

	for beam, want := range map[*rtplan.Beam]Technique{&static: TechniqueStatic, &imrt: TechniqueIMRT, &vmat: TechniqueVMAT} {
		got, err := ClassifyTechnique(beam)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ClassifyTechnique(&rtplan.Beam{Number: 4})
	var encErr *EncodingError
	assert.True(t, errors.As(err, &encErr))
}

func TestStaticBeamLastBlockIsMeterSetOnly(t *testing.T) {
	beam := testBeam(1, "S", rtplan.RotationNone, 0, 1)
	plan := testPlan(beam)

	enc, err := EncodeBeam(plan, &plan.Beams[0])
	require.NoError(t, err)
	f := enc.File

	_, ok := f.Value(efs.TagFieldComplexity, efs.HeaderControlPoint)
	assert.False(t, ok)

	last := f.Block(2)
	require.Len(t, last, 1)
	assert.Equal(t, efs.TagMeterSet.Code(), last[0].Code)
	assert.Equal(t, "100.0", last[0].Value)

	// 12 геометрических записей + 160 лепестков + MeterSet.
	assert.Len(t, f.Block(1), 12+2*efs.LeavesPerBank+1)
	assert.Equal(t, 2, f.ControlPoints())
}

func TestHeaderRecords(t *testing.T) {
	beam := testBeam(7, "AP", rtplan.RotationNone, 0, 0.4, 1)
	plan := testPlan(beam)
	plan.Meterset[7] = 123.456

	enc, err := EncodeBeam(plan, &plan.Beams[0])
	require.NoError(t, err)

	var lines []string
	for _, r := range enc.File.Block(efs.HeaderControlPoint) {
		lines = append(lines, r.String())
	}
	assert.Equal(t, []string{
		"5001,1-0 123.46",
		"7001,1-0 6480",
		"7001,2-0 PAT01",
		"7001,3-0 DOE^JANE",
		"7001,4-0 DCM2EFS",
		"7001,5-0 TB1",
		"7001,6-0 7",
		"7001,7-0 AP desc",
		"7002,6-0 0.5",
		"7002,5-0 Dynamic",
	}, lines)
}

func TestHeaderMUsRoundsTiesToEven(t *testing.T) {
	beam := testBeam(1, "S", rtplan.RotationNone, 0, 1)
	plan := testPlan(beam)
	plan.Meterset[1] = 100.125

	enc, err := EncodeBeam(plan, &plan.Beams[0])
	require.NoError(t, err)
	v, ok := enc.File.Value(efs.TagMUs, efs.HeaderControlPoint)
	require.True(t, ok)
	assert.Equal(t, "100.12", v)
}

func TestIMRTGeometry(t *testing.T) {
	beam := testBeam(1, "F", rtplan.RotationNone, 0, 0.5, 1)
	plan := testPlan(beam)

	enc, err := EncodeBeam(plan, &plan.Beams[0])
	require.NoError(t, err)
	assert.Equal(t, TechniqueIMRT, enc.Technique)

	f := enc.File
	for cp := 1; cp <= 3; cp++ {
		v, _ := f.Value(efs.TagGantry, cp)
		assert.Equal(t, "-159", v, "угол первой точки, усеченный до целого")
		v, _ = f.Value(efs.TagGantryDirection, cp)
		assert.Equal(t, "NONE", v)
		v, _ = f.Value(efs.TagCollimator, cp)
		assert.Equal(t, "-10", v)
		v, _ = f.Value(efs.TagEnergy, cp)
		assert.Equal(t, "6 MV", v)
		// Y шторки первой точки используются, когда в точке только MLC.
		v, _ = f.Value(efs.TagX1, cp)
		assert.Equal(t, "6.0", v)
		v, _ = f.Value(efs.TagX2, cp)
		assert.Equal(t, "5.0", v)
		v, _ = f.Value(efs.TagY1, cp)
		assert.Equal(t, "20.0", v)
		v, _ = f.Value(efs.TagY2, cp)
		assert.Equal(t, "20.0", v)
	}
	v, _ := f.Value(efs.TagMeterSet, 2)
	assert.Equal(t, "50.0", v)

	require.Len(t, enc.Segments, 3)
	assert.InDelta(t, 50, enc.Segments[1].DeltaMU, 1e-9)
	assert.InDelta(t, 50, enc.Segments[2].DeltaMU, 1e-9)
}

func TestVMATReadsGantryPerControlPoint(t *testing.T) {
	beam := testBeam(1, "ARC", rtplan.RotationCounterClockwise, 0, 0.5, 1)
	beam.ControlPoints[2].GantryRotation = rtplan.RotationClockwise
	plan := testPlan(beam)

	enc, err := EncodeBeam(plan, &plan.Beams[0])
	require.NoError(t, err)

	v, _ := enc.File.Value(efs.TagFieldComplexity, efs.HeaderControlPoint)
	assert.Equal(t, "IMAT", v)

	for cp, want := range map[int]float64{1: -159.3, 2: -169.3, 3: -179.3} {
		v, _ = enc.File.Value(efs.TagGantry, cp)
		angle, err := strconv.ParseFloat(v, 64)
		require.NoError(t, err)
		assert.InDelta(t, want, angle, 1e-9)
	}
	v, _ = enc.File.Value(efs.TagGantryDirection, 2)
	assert.Equal(t, "CC", v)
	v, _ = enc.File.Value(efs.TagGantryDirection, 3)
	assert.Equal(t, "CW", v)
}

func TestNormalizeAngleBoundary(t *testing.T) {
	assert.Equal(t, 180.0, NormalizeAngle(180))
	assert.InDelta(t, -179.9999, NormalizeAngle(180.0001), 1e-9)
	assert.Equal(t, 0.0, NormalizeAngle(0))
	assert.Equal(t, -1.0, NormalizeAngle(359))
}

func TestDeviceCountResolution(t *testing.T) {
	beam := testBeam(1, "D", rtplan.RotationNone, 0, 0.5, 1)
	beam.ControlPoints[1].Devices = []rtplan.DevicePosition{
		{Type: rtplan.DeviceASYMY, Positions: []float64{-30, 40}},
		{Type: rtplan.DeviceMLCX, Positions: leafBank(0)},
	}
	plan := testPlan(beam)

	enc, err := EncodeBeam(plan, &plan.Beams[0])
	require.NoError(t, err)
	v, _ := enc.File.Value(efs.TagX1, 2)
	assert.Equal(t, "4.0", v)
	v, _ = enc.File.Value(efs.TagX2, 2)
	assert.Equal(t, "3.0", v)
}

func TestRoundTrip(t *testing.T) {
	beam := testBeam(3, "RT", rtplan.RotationClockwise, 0, 0.25, 0.75, 1)
	plan := testPlan(beam)

	enc, err := EncodeBeam(plan, &plan.Beams[0])
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rt.efs")
	require.NoError(t, enc.File.Save(path))
	loaded, err := efs.Load(path)
	require.NoError(t, err)
	assert.Equal(t, enc.File.Records(), loaded.Records())

	var leaves []efs.LeafRecord
	for _, r := range loaded.Block(2) {
		if efs.IsLeaf(r.Code) {
			v, err := strconv.ParseFloat(r.Value, 64)
			require.NoError(t, err)
			leaves = append(leaves, efs.LeafRecord{Code: r.Code, Value: v})
		}
	}
	decoded, err := efs.DecodeLeaves(leaves)
	require.NoError(t, err)
	assert.InDeltaSlice(t, leafBank(5), decoded, 1e-9)
}

func TestEncodingErrors(t *testing.T) {
	beam := testBeam(1, "E", rtplan.RotationNone, 0, 1)
	plan := testPlan(beam)
	delete(plan.Meterset, 1)
	_, err := EncodeBeam(plan, &plan.Beams[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))

	beam = testBeam(1, "E", rtplan.RotationNone, 0, 0.5, 1)
	beam.ControlPoints[1].Devices[0].Positions = beam.ControlPoints[1].Devices[0].Positions[:100]
	plan = testPlan(beam)
	_, err = EncodeBeam(plan, &plan.Beams[0])
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "LeafJawPositions[1]", encErr.Field)
}

func TestConvertPlanIsolatesBeamFailures(t *testing.T) {
	good := testBeam(1, "GOOD", rtplan.RotationNone, 0, 1)
	bad := testBeam(2, "BAD", rtplan.RotationNone, 0, 0.5, 1)
	bad.ControlPoints[2].CumulativeMetersetWeight = nil
	plan := testPlan(good, bad)

	dir := t.TempDir()
	// Файл от прошлой конвертации не должен остаться после неудачи.
	stale := filepath.Join(dir, "Beam_BAD.efs")
	require.NoError(t, os.WriteFile(stale, []byte("5001,1-0 1.0\n"), 0o644))

	res, err := ConvertPlan(plan, dir)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	require.Len(t, res.Failures, 1)
	assert.Error(t, res.Err())

	assert.Equal(t, filepath.Join(dir, "Beam_GOOD.efs"), res.Files[0].Path)
	assert.FileExists(t, res.Files[0].Path)
	assert.NoFileExists(t, stale)
}

func TestFileNameSanitizesSeparators(t *testing.T) {
	assert.Equal(t, "Beam_a_b.efs", FileName(&rtplan.Beam{Name: "a/b"}))
	assert.Equal(t, "Beam_4.efs", FileName(&rtplan.Beam{Number: 4}))
}
