package rtplan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	// ErrUnsupportedFormat возвращается для форматов планов, которые не читаются (RTP).
	ErrUnsupportedFormat = errors.New("rtplan: unsupported plan format")
	// ErrNotRTPlan возвращается, если DICOM объект не является RT Plan.
	ErrNotRTPlan = errors.New("rtplan: dataset is not an RT Plan")
)

// RTPlanStorageUID - SOP Class UID объекта RT Plan.
const RTPlanStorageUID = "1.2.840.10008.5.1.4.1.1.481.5"

// Теги, которые читает загрузчик.
var (
	tagSOPClassUID              = tag.Tag{Group: 0x0008, Element: 0x0016}
	tagPatientName              = tag.Tag{Group: 0x0010, Element: 0x0010}
	tagPatientID                = tag.Tag{Group: 0x0010, Element: 0x0020}
	tagRTPlanLabel              = tag.Tag{Group: 0x300A, Element: 0x0002}
	tagFractionGroupSequence    = tag.Tag{Group: 0x300A, Element: 0x0070}
	tagBeamMeterset             = tag.Tag{Group: 0x300A, Element: 0x0086}
	tagBeamSequence             = tag.Tag{Group: 0x300A, Element: 0x00B0}
	tagTreatmentMachineName     = tag.Tag{Group: 0x300A, Element: 0x00B2}
	tagRTBeamLimitingDeviceType = tag.Tag{Group: 0x300A, Element: 0x00B8}
	tagBeamNumber               = tag.Tag{Group: 0x300A, Element: 0x00C0}
	tagBeamName                 = tag.Tag{Group: 0x300A, Element: 0x00C2}
	tagBeamDescription          = tag.Tag{Group: 0x300A, Element: 0x00C3}
	tagControlPointSequence     = tag.Tag{Group: 0x300A, Element: 0x0111}
	tagControlPointIndex        = tag.Tag{Group: 0x300A, Element: 0x0112}
	tagNominalBeamEnergy        = tag.Tag{Group: 0x300A, Element: 0x0114}
	tagDevicePositionSequence   = tag.Tag{Group: 0x300A, Element: 0x011A}
	tagLeafJawPositions         = tag.Tag{Group: 0x300A, Element: 0x011C}
	tagGantryAngle              = tag.Tag{Group: 0x300A, Element: 0x011E}
	tagGantryRotationDirection  = tag.Tag{Group: 0x300A, Element: 0x011F}
	tagBeamLimitingDeviceAngle  = tag.Tag{Group: 0x300A, Element: 0x0120}
	tagCumulativeMetersetWeight = tag.Tag{Group: 0x300A, Element: 0x0134}
	tagReferencedBeamSequence   = tag.Tag{Group: 0x300C, Element: 0x0004}
	tagReferencedBeamNumber     = tag.Tag{Group: 0x300C, Element: 0x0006}
)

// LoadFile читает план из файла. Поддерживается DICOM RT Plan (.dcm);
// файлы .rtp отклоняются с ErrUnsupportedFormat.
func LoadFile(path string) (*Plan, error) {
	if strings.EqualFold(filepath.Ext(path), ".rtp") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("rtplan: parse %s: %w", path, err)
	}
	plan, err := FromDataset(ds.Elements)
	if err != nil {
		return nil, fmt.Errorf("rtplan: %s: %w", path, err)
	}
	return plan, nil
}

// FromDataset собирает план из элементов верхнего уровня DICOM объекта.
func FromDataset(elements []*dicom.Element) (*Plan, error) {
	if uid, ok := stringValue(elements, tagSOPClassUID); ok && uid != RTPlanStorageUID {
		return nil, fmt.Errorf("%w: SOP class %s", ErrNotRTPlan, uid)
	}

	plan := &Plan{Meterset: make(map[int]float64)}
	plan.PatientID, _ = stringValue(elements, tagPatientID)
	plan.PatientName, _ = stringValue(elements, tagPatientName)
	plan.Label, _ = stringValue(elements, tagRTPlanLabel)

	groups := sequenceItems(elements, tagFractionGroupSequence)
	if len(groups) > 0 {
		for _, ref := range sequenceItems(groups[0], tagReferencedBeamSequence) {
			number, ok := intValue(ref, tagReferencedBeamNumber)
			if !ok {
				continue
			}
			if mu, ok := floatValue(ref, tagBeamMeterset); ok {
				plan.Meterset[number] = mu
			}
		}
	}

	beams := sequenceItems(elements, tagBeamSequence)
	if len(beams) == 0 {
		return nil, fmt.Errorf("%w: no beam sequence", ErrNotRTPlan)
	}
	for i, item := range beams {
		beam, err := beamFromItem(item)
		if err != nil {
			return nil, fmt.Errorf("beam %d: %w", i+1, err)
		}
		plan.Beams = append(plan.Beams, beam)
	}
	return plan, nil
}

func beamFromItem(item []*dicom.Element) (Beam, error) {
	var beam Beam
	number, ok := intValue(item, tagBeamNumber)
	if !ok {
		return beam, errors.New("missing BeamNumber")
	}
	beam.Number = number
	beam.Name, _ = stringValue(item, tagBeamName)
	beam.Description, _ = stringValue(item, tagBeamDescription)
	beam.TreatmentMachineName, _ = stringValue(item, tagTreatmentMachineName)

	for i, cpItem := range sequenceItems(item, tagControlPointSequence) {
		cp, err := controlPointFromItem(cpItem, i)
		if err != nil {
			return beam, fmt.Errorf("control point %d: %w", i, err)
		}
		beam.ControlPoints = append(beam.ControlPoints, cp)
	}
	return beam, nil
}

func controlPointFromItem(item []*dicom.Element, position int) (ControlPoint, error) {
	cp := ControlPoint{Index: position}
	if idx, ok := intValue(item, tagControlPointIndex); ok {
		cp.Index = idx
	}
	if v, ok := floatValue(item, tagCumulativeMetersetWeight); ok {
		cp.CumulativeMetersetWeight = Float(v)
	}
	if v, ok := floatValue(item, tagNominalBeamEnergy); ok {
		cp.NominalBeamEnergy = Float(v)
	}
	if v, ok := floatValue(item, tagGantryAngle); ok {
		cp.GantryAngle = Float(v)
	}
	if v, ok := floatValue(item, tagBeamLimitingDeviceAngle); ok {
		cp.CollimatorAngle = Float(v)
	}
	if s, ok := stringValue(item, tagGantryRotationDirection); ok && s != "" {
		dir, err := ParseRotation(s)
		if err != nil {
			return cp, err
		}
		cp.GantryRotation = dir
	}

	if devices := sequenceItems(item, tagDevicePositionSequence); devices != nil {
		cp.Devices = make([]DevicePosition, 0, len(devices))
		for _, dev := range devices {
			typ, _ := stringValue(dev, tagRTBeamLimitingDeviceType)
			positions, ok := floatValues(dev, tagLeafJawPositions)
			if !ok {
				return cp, fmt.Errorf("device %q has no LeafJawPositions", typ)
			}
			cp.Devices = append(cp.Devices, DevicePosition{Type: typ, Positions: positions})
		}
	}
	return cp, nil
}

func findElement(elements []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, el := range elements {
		if el != nil && el.Tag == t {
			return el
		}
	}
	return nil
}

func stringValue(elements []*dicom.Element, t tag.Tag) (string, bool) {
	el := findElement(elements, t)
	if el == nil || el.Value == nil {
		return "", false
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		if len(v) == 0 {
			return "", true
		}
		return strings.TrimSpace(strings.TrimRight(v[0], "\x00")), true
	case []int:
		if len(v) == 0 {
			return "", true
		}
		return strconv.Itoa(v[0]), true
	case []float64:
		if len(v) == 0 {
			return "", true
		}
		return strconv.FormatFloat(v[0], 'f', -1, 64), true
	default:
		return "", false
	}
}

// floatValues читает многозначный числовой атрибут. DS и IS приходят из
// парсера строками, FD/FL - числами.
func floatValues(elements []*dicom.Element, t tag.Tag) ([]float64, bool) {
	el := findElement(elements, t)
	if el == nil || el.Value == nil {
		return nil, false
	}
	switch v := el.Value.GetValue().(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out, true
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, true
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}

func floatValue(elements []*dicom.Element, t tag.Tag) (float64, bool) {
	values, ok := floatValues(elements, t)
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

func intValue(elements []*dicom.Element, t tag.Tag) (int, bool) {
	f, ok := floatValue(elements, t)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// sequenceItems возвращает элементы каждого item последовательности.
// nil - последовательности нет.
func sequenceItems(elements []*dicom.Element, t tag.Tag) [][]*dicom.Element {
	el := findElement(elements, t)
	if el == nil || el.Value == nil {
		return nil
	}
	items, ok := el.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil
	}
	out := make([][]*dicom.Element, 0, len(items))
	for _, item := range items {
		nested, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			continue
		}
		out = append(out, nested)
	}
	return out
}
