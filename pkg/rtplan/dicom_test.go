package rtplan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func element(t *testing.T, tg tag.Tag, data interface{}) *dicom.Element {
	t.Helper()
	v, err := dicom.NewValue(data)
	require.NoError(t, err)
	return &dicom.Element{Tag: tg, Value: v}
}

func sequence(t *testing.T, tg tag.Tag, items ...[]*dicom.Element) *dicom.Element {
	t.Helper()
	return element(t, tg, items)
}

func controlPointItem(t *testing.T, idx string, weight string, devices ...[]*dicom.Element) []*dicom.Element {
	item := []*dicom.Element{
		element(t, tagControlPointIndex, []string{idx}),
		element(t, tagCumulativeMetersetWeight, []string{weight}),
	}
	if idx == "0" {
		item = append(item,
			element(t, tagNominalBeamEnergy, []string{"6"}),
			element(t, tagGantryAngle, []string{"180.5"}),
			element(t, tagGantryRotationDirection, []string{"CW"}),
			element(t, tagBeamLimitingDeviceAngle, []string{"10"}),
		)
	}
	if len(devices) > 0 {
		item = append(item, sequence(t, tagDevicePositionSequence, devices...))
	}
	return item
}

func device(t *testing.T, typ string, positions ...string) []*dicom.Element {
	return []*dicom.Element{
		element(t, tagRTBeamLimitingDeviceType, []string{typ}),
		element(t, tagLeafJawPositions, positions),
	}
}

func TestFromDataset(t *testing.T) {
	beam := []*dicom.Element{
		element(t, tagBeamNumber, []string{"2"}),
		element(t, tagBeamName, []string{"ARC1"}),
		element(t, tagBeamDescription, []string{"Arc one"}),
		element(t, tagTreatmentMachineName, []string{"TrueBeam"}),
		sequence(t, tagControlPointSequence,
			controlPointItem(t, "0", "0",
				device(t, DeviceASYMY, "-50", "50"),
				device(t, DeviceMLCX, "-1.5", "2.5"),
			),
			controlPointItem(t, "1", "1"),
		),
	}
	elements := []*dicom.Element{
		element(t, tagSOPClassUID, []string{RTPlanStorageUID}),
		element(t, tagPatientID, []string{"12345"}),
		element(t, tagPatientName, []string{"DOE^JANE"}),
		element(t, tagRTPlanLabel, []string{"Prostate"}),
		sequence(t, tagFractionGroupSequence, []*dicom.Element{
			sequence(t, tagReferencedBeamSequence, []*dicom.Element{
				element(t, tagReferencedBeamNumber, []string{"2"}),
				element(t, tagBeamMeterset, []string{"123.456"}),
			}),
		}),
		sequence(t, tagBeamSequence, beam),
	}

	plan, err := FromDataset(elements)
	require.NoError(t, err)
	assert.Equal(t, "12345", plan.PatientID)
	assert.Equal(t, "DOE^JANE", plan.PatientName)
	assert.Equal(t, "TrueBeam", plan.MachineName())

	mu, ok := plan.BeamMeterset(2)
	require.True(t, ok)
	assert.InDelta(t, 123.456, mu, 1e-9)

	require.Len(t, plan.Beams, 1)
	b := plan.Beams[0]
	assert.Equal(t, 2, b.Number)
	assert.Equal(t, "Arc one", b.DisplayName())
	require.Len(t, b.ControlPoints, 2)

	first := b.ControlPoints[0]
	require.NotNil(t, first.GantryAngle)
	assert.Equal(t, 180.5, *first.GantryAngle)
	assert.Equal(t, RotationClockwise, first.GantryRotation)
	require.NotNil(t, first.NominalBeamEnergy)
	assert.Equal(t, 6.0, *first.NominalBeamEnergy)
	require.Len(t, first.Devices, 2)
	assert.Equal(t, []float64{-1.5, 2.5}, first.Devices[1].Positions)

	second := b.ControlPoints[1]
	assert.Nil(t, second.GantryAngle)
	assert.Nil(t, second.Devices)
	require.NotNil(t, second.CumulativeMetersetWeight)
	assert.Equal(t, 1.0, *second.CumulativeMetersetWeight)
}

func TestFromDatasetRejectsOtherObjects(t *testing.T) {
	_, err := FromDataset([]*dicom.Element{
		element(t, tagSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.2"}),
	})
	assert.True(t, errors.Is(err, ErrNotRTPlan))

	_, err = FromDataset([]*dicom.Element{
		element(t, tagPatientID, []string{"1"}),
	})
	assert.True(t, errors.Is(err, ErrNotRTPlan))
}

func TestFromDatasetRejectsBadRotation(t *testing.T) {
	beam := []*dicom.Element{
		element(t, tagBeamNumber, []string{"1"}),
		sequence(t, tagControlPointSequence, []*dicom.Element{
			element(t, tagGantryRotationDirection, []string{"SIDEWAYS"}),
		}),
	}
	_, err := FromDataset([]*dicom.Element{sequence(t, tagBeamSequence, beam)})
	assert.Error(t, err)
}

func TestLoadFileRejectsRTP(t *testing.T) {
	_, err := LoadFile("/tmp/plan.RTP")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
