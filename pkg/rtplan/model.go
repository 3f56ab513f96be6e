// Package rtplan описывает план облучения в том объеме, который нужен
// конвертеру EFS, и читает его из DICOM RT Plan.
package rtplan

import "fmt"

// RotationDirection - направление вращения гантри в контрольной точке.
type RotationDirection string

const (
	RotationNone             RotationDirection = "NONE"
	RotationClockwise        RotationDirection = "CW"
	RotationCounterClockwise RotationDirection = "CC"
)

// ParseRotation нормализует значение атрибута GantryRotationDirection.
func ParseRotation(s string) (RotationDirection, error) {
	switch RotationDirection(s) {
	case RotationNone, RotationClockwise, RotationCounterClockwise:
		return RotationDirection(s), nil
	default:
		return "", fmt.Errorf("unknown gantry rotation direction %q", s)
	}
}

// Типы ограничивающих устройств (RTBeamLimitingDeviceType).
const (
	DeviceASYMX = "ASYMX"
	DeviceASYMY = "ASYMY"
	DeviceX     = "X"
	DeviceY     = "Y"
	DeviceMLCX  = "MLCX"
	DeviceMLCY  = "MLCY"
)

// DevicePosition - положение одного ограничивающего устройства (шторки или банк MLC).
// Positions в десятых долях сантиметра (мм), как в плане.
type DevicePosition struct {
	Type      string
	Positions []float64
}

// ControlPoint - снимок геометрии и дозы в пределах пучка.
// Необязательные атрибуты DICOM представлены указателями: nil - атрибут отсутствует.
type ControlPoint struct {
	Index                    int
	CumulativeMetersetWeight *float64
	NominalBeamEnergy        *float64
	GantryAngle              *float64
	GantryRotation           RotationDirection
	CollimatorAngle          *float64
	// Devices == nil означает, что точка не меняет положение устройств.
	Devices []DevicePosition
}

// Beam - пучок плана.
type Beam struct {
	Number               int
	Name                 string
	Description          string
	TreatmentMachineName string
	ControlPoints        []ControlPoint
}

// DisplayName возвращает описание пучка, а если его нет - имя.
func (b *Beam) DisplayName() string {
	if b.Description != "" {
		return b.Description
	}
	return b.Name
}

// Plan - план облучения. Только для чтения.
type Plan struct {
	PatientID   string
	PatientName string
	Label       string
	Beams       []Beam
	// Meterset - таблица FractionGroupSequence[0]: номер пучка -> BeamMeterset.
	Meterset map[int]float64
}

// BeamMeterset возвращает полное число MU пучка из таблицы фракции.
func (p *Plan) BeamMeterset(beamNumber int) (float64, bool) {
	if p.Meterset == nil {
		return 0, false
	}
	mu, ok := p.Meterset[beamNumber]
	return mu, ok
}

// MachineName возвращает имя аппарата первого пучка плана.
func (p *Plan) MachineName() string {
	if len(p.Beams) == 0 {
		return ""
	}
	return p.Beams[0].TreatmentMachineName
}

// Float возвращает указатель на значение; удобно при сборке планов в коде.
func Float(v float64) *float64 {
	return &v
}
