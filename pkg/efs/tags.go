package efs

import "fmt"

// TagCode - числовой код поля формата iCOM: (group << 16) | element.
type TagCode uint32

// NewTagCode собирает код тега из группы и элемента.
func NewTagCode(group, element uint16) TagCode {
	return TagCode(uint32(group)<<16 | uint32(element))
}

// Group возвращает группу тега.
func (c TagCode) Group() uint16 { return uint16(uint32(c) >> 16) }

// Element возвращает элемент тега.
func (c TagCode) Element() uint16 { return uint16(uint32(c) & 0xffff) }

// String возвращает код в виде 8 hex-символов, как его показывает консоль LINAC.
func (c TagCode) String() string { return fmt.Sprintf("%08x", uint32(c)) }

// Tag - закрытое перечисление полей, которые пишет конвертер и подменяет загрузчик.
type Tag int

const (
	TagMUs Tag = iota
	TagLinac
	TagPatientID
	TagPatientName
	TagPlanName
	TagTxName
	TagBeamID
	TagBeamName
	TagFieldComplexity
	TagLeafWidth
	TagRadType
	TagEnergy
	TagWedge
	TagDoseRate
	TagGantry
	TagCollimator
	TagX1
	TagX2
	TagY1
	TagY2
	TagAccessory
	TagGantryDirection
	TagCollimatorDirection
	TagMeterSet

	tagCount
)

// Группы тегов формата.
const (
	GroupBeam  uint16 = 0x5001
	GroupField uint16 = 0x7001
	GroupPlan  uint16 = 0x7002
)

// Code возвращает (group, element) для тега. Функция тотальна: новый тег без
// ветки в switch ломает TestTagCodesAreTotal.
func (t Tag) Code() TagCode {
	switch t {
	case TagMUs:
		return NewTagCode(GroupBeam, 0x1)
	case TagLinac:
		return NewTagCode(GroupField, 0x1)
	case TagPatientID:
		return NewTagCode(GroupField, 0x2)
	case TagPatientName:
		return NewTagCode(GroupField, 0x3)
	case TagPlanName:
		return NewTagCode(GroupField, 0x4)
	case TagTxName:
		return NewTagCode(GroupField, 0x5)
	case TagBeamID:
		return NewTagCode(GroupField, 0x6)
	case TagBeamName:
		return NewTagCode(GroupField, 0x7)
	case TagFieldComplexity:
		return NewTagCode(GroupPlan, 0x5)
	case TagLeafWidth:
		return NewTagCode(GroupPlan, 0x6)
	case TagRadType:
		return NewTagCode(GroupBeam, 0x2)
	case TagEnergy:
		return NewTagCode(GroupBeam, 0x3)
	case TagWedge:
		return NewTagCode(GroupBeam, 0x4)
	case TagDoseRate:
		return NewTagCode(GroupBeam, 0x6)
	case TagGantry:
		return NewTagCode(GroupBeam, 0x7)
	case TagCollimator:
		return NewTagCode(GroupBeam, 0x8)
	case TagX1:
		return NewTagCode(GroupBeam, 0x9)
	case TagX2:
		return NewTagCode(GroupBeam, 0xa)
	case TagY1:
		return NewTagCode(GroupBeam, 0xb)
	case TagY2:
		return NewTagCode(GroupBeam, 0xc)
	case TagAccessory:
		return NewTagCode(GroupBeam, 0xf)
	case TagGantryDirection:
		return NewTagCode(GroupBeam, 0x19)
	case TagCollimatorDirection:
		return NewTagCode(GroupBeam, 0xbb)
	case TagMeterSet:
		return NewTagCode(GroupPlan, 0x4)
	default:
		panic(fmt.Sprintf("efs: unknown tag %d", int(t)))
	}
}

// Name возвращает человекочитаемое имя тега.
func (t Tag) Name() string {
	switch t {
	case TagMUs:
		return "MUs"
	case TagLinac:
		return "LINAC"
	case TagPatientID:
		return "Patient ID"
	case TagPatientName:
		return "Patient Name"
	case TagPlanName:
		return "Plan Name"
	case TagTxName:
		return "Tx Name"
	case TagBeamID:
		return "Beam ID"
	case TagBeamName:
		return "Beam Name"
	case TagFieldComplexity:
		return "Field Complexity"
	case TagLeafWidth:
		return "Leaf Width"
	case TagRadType:
		return "Radiation Type"
	case TagEnergy:
		return "Energy"
	case TagWedge:
		return "Wedge"
	case TagDoseRate:
		return "Dose Rate"
	case TagGantry:
		return "Gantry Angle"
	case TagCollimator:
		return "Collimator Angle"
	case TagX1:
		return "X1"
	case TagX2:
		return "X2"
	case TagY1:
		return "Y1"
	case TagY2:
		return "Y2"
	case TagAccessory:
		return "Accessory"
	case TagGantryDirection:
		return "Gantry Direction"
	case TagCollimatorDirection:
		return "Collimator Direction"
	case TagMeterSet:
		return "Beam Meterset"
	default:
		return "UNKNOWN"
	}
}

// AllTags возвращает все теги перечисления по порядку.
func AllTags() []Tag {
	tags := make([]Tag, 0, tagCount)
	for t := Tag(0); t < tagCount; t++ {
		tags = append(tags, t)
	}
	return tags
}

var tagsByCode = func() map[TagCode]Tag {
	m := make(map[TagCode]Tag, tagCount)
	for _, t := range AllTags() {
		m[t.Code()] = t
	}
	return m
}()

// LookupTag находит тег перечисления по коду. Коды лепестков MLC сюда не входят.
func LookupTag(code TagCode) (Tag, bool) {
	t, ok := tagsByCode[code]
	return t, ok
}

// TagName возвращает имя для любого кода, включая лепестки MLC.
func TagName(code TagCode) string {
	if t, ok := LookupTag(code); ok {
		return t.Name()
	}
	if bank, leaf, ok := LookupLeaf(code); ok {
		return fmt.Sprintf("MLC %s leaf %d", bank, leaf)
	}
	return code.String()
}

// ErrorCategory расшифровывает код ошибки, которым LINAC отвечает на тег.
func ErrorCategory(code int) string {
	switch code {
	case 0:
		return "OK"
	case 1:
		return "Not Supported"
	case 2:
		return "Under Specified"
	case 3:
		return "Over Specified"
	case 4:
		return "Outside Range"
	case 5:
		return "Inconsistency"
	case 6:
		return "Mismatch Text"
	case 7:
		return "Protocol Error"
	case 8:
		return "Not Ready"
	case 9:
		return "Wrong Machine"
	case 10:
		return "Checksum Error"
	case 11:
		return "Version Error"
	case 12:
		return "Not Licensed"
	case -3:
		return "Invalid Message"
	default:
		return "UNKNOWN"
	}
}
