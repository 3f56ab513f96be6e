// Package converter превращает план облучения в EFS файлы, по одному на пучок.
package converter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/rtplan"
)

// Постоянные значения заголовка и геометрии.
const (
	MachineID               = "6480"
	PlanName                = "DCM2EFS"
	LeafWidth               = 0.5
	RadiationType           = "XRAY"
	WedgeOut                = "OUT"
	CollimatorDirectionNone = "NONE"
	AccessoryNone           = 0
)

// DefaultXJaw - положение пары шторок, которой нет в плане.
var DefaultXJaw = [2]float64{-200, 200}

// Technique - техника облучения пучка.
type Technique int

const (
	TechniqueStatic Technique = iota + 1
	TechniqueIMRT
	TechniqueVMAT
)

func (t Technique) String() string {
	switch t {
	case TechniqueStatic:
		return "Static"
	case TechniqueIMRT:
		return "IMRT"
	case TechniqueVMAT:
		return "VMAT"
	default:
		return "Unknown"
	}
}

// FieldComplexity возвращает значение записи сложности поля; у Static ее нет.
func (t Technique) FieldComplexity() (string, bool) {
	switch t {
	case TechniqueIMRT:
		return "Dynamic", true
	case TechniqueVMAT:
		return "IMAT", true
	default:
		return "", false
	}
}

// ErrMissingField - в плане нет обязательного атрибута.
var ErrMissingField = errors.New("missing plan field")

// EncodingError - пучок не удалось закодировать. Остальные пучки плана не затрагиваются.
type EncodingError struct {
	BeamNumber int
	BeamName   string
	Field      string
	Err        error
}

func (e *EncodingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("converter: beam %d (%s): %s: %v", e.BeamNumber, e.BeamName, e.Field, e.Err)
	}
	return fmt.Sprintf("converter: beam %d (%s): %v", e.BeamNumber, e.BeamName, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

func missing(beam *rtplan.Beam, field string) error {
	return &EncodingError{BeamNumber: beam.Number, BeamName: beam.Name, Field: field, Err: ErrMissingField}
}

func invalid(beam *rtplan.Beam, field string, err error) error {
	return &EncodingError{BeamNumber: beam.Number, BeamName: beam.Name, Field: field, Err: err}
}

// NormalizeAngle переводит угол больше 180 в отрицательный диапазон.
func NormalizeAngle(angle float64) float64 {
	if angle > 180 {
		return angle - 360
	}
	return angle
}

// ClassifyTechnique определяет технику по первой контрольной точке и числу точек.
func ClassifyTechnique(beam *rtplan.Beam) (Technique, error) {
	if len(beam.ControlPoints) == 0 {
		return 0, missing(beam, "ControlPointSequence")
	}
	rotation := beam.ControlPoints[0].GantryRotation
	if rotation == "" {
		return 0, missing(beam, "GantryRotationDirection")
	}
	if rotation == rtplan.RotationNone {
		if len(beam.ControlPoints) > 2 {
			return TechniqueIMRT, nil
		}
		if len(beam.ControlPoints) == 2 {
			return TechniqueStatic, nil
		}
	}
	return TechniqueVMAT, nil
}

// Segment - доза между соседними контрольными точками.
type Segment struct {
	ControlPoint     int
	CumulativeWeight float64
	DeltaMU          float64
}

// EncodedBeam - результат кодирования одного пучка.
type EncodedBeam struct {
	BeamNumber int
	BeamName   string
	Technique  Technique
	TotalMU    float64
	Segments   []Segment
	File       *efs.File
}

// beamGeometry - значения, вычисляемые один раз на пучок.
type beamGeometry struct {
	technique    Technique
	energy       string
	collimator   int
	firstGantry  float64
	firstRot     rtplan.RotationDirection
	defaultYJaw  []float64
	defaultYRead bool
}

// EncodeBeam строит EFS файл пучка. Файл собирается в памяти целиком;
// при ошибке возвращается *EncodingError и файла нет.
func EncodeBeam(plan *rtplan.Plan, beam *rtplan.Beam) (*EncodedBeam, error) {
	total, ok := plan.BeamMeterset(beam.Number)
	if !ok {
		return nil, missing(beam, "BeamMeterset")
	}
	if plan.PatientID == "" {
		return nil, missing(beam, "PatientID")
	}

	technique, err := ClassifyTechnique(beam)
	if err != nil {
		return nil, err
	}

	first := beam.ControlPoints[0]
	if first.NominalBeamEnergy == nil {
		return nil, missing(beam, "NominalBeamEnergy")
	}
	if first.CollimatorAngle == nil {
		return nil, missing(beam, "BeamLimitingDeviceAngle")
	}
	if first.GantryAngle == nil {
		return nil, missing(beam, "GantryAngle")
	}

	geo := &beamGeometry{
		technique:   technique,
		energy:      efs.FormatNumber(*first.NominalBeamEnergy) + " MV",
		collimator:  int(NormalizeAngle(*first.CollimatorAngle)),
		firstGantry: NormalizeAngle(*first.GantryAngle),
		firstRot:    first.GantryRotation,
	}

	f := efs.NewFile()
	const hdr = efs.HeaderControlPoint
	f.Add(efs.TagMUs, hdr, efs.FormatFloat(efs.Round2(total)))
	f.Add(efs.TagLinac, hdr, MachineID)
	f.Add(efs.TagPatientID, hdr, plan.PatientID)
	f.Add(efs.TagPatientName, hdr, plan.PatientName)
	f.Add(efs.TagPlanName, hdr, PlanName)
	f.Add(efs.TagTxName, hdr, plan.MachineName())
	f.Add(efs.TagBeamID, hdr, efs.FormatInt(beam.Number))
	f.Add(efs.TagBeamName, hdr, beam.DisplayName())
	f.Add(efs.TagLeafWidth, hdr, efs.FormatFloat(LeafWidth))
	if complexity, ok := technique.FieldComplexity(); ok {
		f.Add(efs.TagFieldComplexity, hdr, complexity)
	}

	out := &EncodedBeam{
		BeamNumber: beam.Number,
		BeamName:   beam.Name,
		Technique:  technique,
		TotalMU:    total,
		File:       f,
	}

	prevWeight := 0.0
	gantry, rotation := geo.firstGantry, geo.firstRot
	count := len(beam.ControlPoints)
	for i := range beam.ControlPoints {
		cp := &beam.ControlPoints[i]
		idx := i + 1

		if cp.CumulativeMetersetWeight == nil {
			return nil, missing(beam, fmt.Sprintf("CumulativeMetersetWeight[%d]", i))
		}
		weight := *cp.CumulativeMetersetWeight
		out.Segments = append(out.Segments, Segment{
			ControlPoint:     idx,
			CumulativeWeight: weight,
			DeltaMU:          (weight - prevWeight) * total,
		})
		prevWeight = weight

		if technique == TechniqueStatic && idx == count {
			f.Add(efs.TagMeterSet, idx, efs.FormatFloat(100*weight))
			continue
		}

		// VMAT берет угол и направление из каждой точки; отсутствующие
		// атрибуты наследуются от предыдущей.
		if technique == TechniqueVMAT {
			if cp.GantryAngle != nil {
				gantry = NormalizeAngle(*cp.GantryAngle)
			}
			if cp.GantryRotation != "" {
				rotation = cp.GantryRotation
			}
		}

		yJaw, leaves, err := geo.resolveDevices(beam, cp)
		if err != nil {
			return nil, err
		}
		records, err := efs.EncodeLeaves(leaves)
		if err != nil {
			return nil, invalid(beam, fmt.Sprintf("LeafJawPositions[%d]", i), err)
		}

		f.Add(efs.TagRadType, idx, RadiationType)
		f.Add(efs.TagEnergy, idx, geo.energy)
		f.Add(efs.TagWedge, idx, WedgeOut)
		if technique == TechniqueVMAT {
			f.Add(efs.TagGantry, idx, efs.FormatFloat(gantry))
		} else {
			f.Add(efs.TagGantry, idx, efs.FormatInt(int(geo.firstGantry)))
		}
		f.Add(efs.TagCollimator, idx, efs.FormatInt(geo.collimator))
		f.Add(efs.TagX1, idx, efs.FormatFloat(yJaw[1]/10))
		f.Add(efs.TagX2, idx, efs.FormatFloat(-yJaw[0]/10))
		f.Add(efs.TagY1, idx, efs.FormatFloat(-DefaultXJaw[0]/10))
		f.Add(efs.TagY2, idx, efs.FormatFloat(DefaultXJaw[1]/10))
		f.Add(efs.TagAccessory, idx, efs.FormatInt(AccessoryNone))
		f.Add(efs.TagGantryDirection, idx, string(rotation))
		f.Add(efs.TagCollimatorDirection, idx, CollimatorDirectionNone)
		f.AddLeaves(idx, records)
		f.Add(efs.TagMeterSet, idx, efs.FormatFloat(100*weight))
	}
	return out, nil
}

// resolveDevices выбирает пару шторок Y и массив лепестков по числу устройств точки:
// одно устройство - лепестки, Y берется со второго устройства первой точки пучка;
// два - Y и лепестки; три и больше - второе и третье.
func (g *beamGeometry) resolveDevices(beam *rtplan.Beam, cp *rtplan.ControlPoint) ([]float64, []float64, error) {
	field := fmt.Sprintf("BeamLimitingDevicePositionSequence[%d]", cp.Index)

	var yJaw, leaves []float64
	switch n := len(cp.Devices); {
	case n == 0:
		return nil, nil, missing(beam, field)
	case n == 1:
		y, err := g.beamYJaw(beam)
		if err != nil {
			return nil, nil, err
		}
		yJaw, leaves = y, cp.Devices[0].Positions
	case n == 2:
		yJaw, leaves = cp.Devices[0].Positions, cp.Devices[1].Positions
	default:
		yJaw, leaves = cp.Devices[1].Positions, cp.Devices[2].Positions
	}
	if len(yJaw) < 2 {
		return nil, nil, invalid(beam, field, fmt.Errorf("jaw pair has %d positions", len(yJaw)))
	}
	return yJaw, leaves, nil
}

func (g *beamGeometry) beamYJaw(beam *rtplan.Beam) ([]float64, error) {
	if !g.defaultYRead {
		g.defaultYRead = true
		first := beam.ControlPoints[0]
		if len(first.Devices) >= 2 {
			g.defaultYJaw = first.Devices[1].Positions
		}
	}
	if len(g.defaultYJaw) < 2 {
		return nil, missing(beam, "BeamLimitingDevicePositionSequence[0][1]")
	}
	return g.defaultYJaw, nil
}

// BeamFile - записанный на диск EFS файл пучка.
type BeamFile struct {
	*EncodedBeam
	Path string
}

// Result - итог конвертации плана.
type Result struct {
	Files    []BeamFile
	Failures []error
}

// Err объединяет ошибки всех пучков, которые не удалось записать.
func (r *Result) Err() error {
	return errors.Join(r.Failures...)
}

// FileName возвращает имя EFS файла пучка.
func FileName(beam *rtplan.Beam) string {
	name := beam.Name
	if name == "" {
		name = efs.FormatInt(beam.Number)
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return "Beam_" + name + efs.Extension
}

// ConvertPlan пишет по одному EFS файлу на пучок в outDir. Ошибка одного пучка
// не прерывает остальные; файл неудачного пучка удаляется.
func ConvertPlan(plan *rtplan.Plan, outDir string) (*Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("converter: create %s: %w", outDir, err)
	}

	res := &Result{}
	for i := range plan.Beams {
		beam := &plan.Beams[i]
		path := filepath.Join(outDir, FileName(beam))

		encoded, err := EncodeBeam(plan, beam)
		if err == nil {
			err = encoded.File.Save(path)
		}
		if err != nil {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				err = errors.Join(err, rmErr)
			}
			res.Failures = append(res.Failures, err)
			continue
		}
		res.Files = append(res.Files, BeamFile{EncodedBeam: encoded, Path: path})
	}
	return res, nil
}

// ConvertFile читает план и конвертирует его. Пустой outDir - каталог плана.
func ConvertFile(path, outDir string) (*Result, error) {
	plan, err := rtplan.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	return ConvertPlan(plan, outDir)
}
