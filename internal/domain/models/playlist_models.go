package models

import "time"

// OverrideValues - необязательные подмены значений EFS файла.
type OverrideValues struct {
	MU          *float64 `json:"mu,omitempty"`
	DoseRate    *float64 `json:"dose_rate,omitempty"`
	PatientID   *string  `json:"patient_id,omitempty"`
	PatientName *string  `json:"patient_name,omitempty"`
}

// FilesRequest - добавить в очередь EFS файлы или планы DICOM.
type FilesRequest struct {
	SessionID string   `json:"session_id" binding:"required"`
	Paths     []string `json:"paths" binding:"required,min=1"`
	OverrideValues
}

// SequenceRequest - добавить в очередь последовательность из каталога.
type SequenceRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
}

// FieldInfo - поле в очереди.
type FieldInfo struct {
	Index    int            `json:"index"`
	Name     string         `json:"name"`
	Filename string         `json:"filename"`
	Current  bool           `json:"current"`
	Override OverrideValues `json:"overrides"`
}

// PlaylistInfo - состояние очереди и сессии.
type PlaylistInfo struct {
	SessionID string      `json:"session_id"`
	Playing   bool        `json:"playing"`
	Cursor    int         `json:"cursor"`
	Status    string      `json:"status"`
	Fields    []FieldInfo `json:"fields"`
}

// SequenceBeam - пучок последовательности каталога.
type SequenceBeam struct {
	Name        string   `yaml:"name" json:"name"`
	Filename    string   `yaml:"filename" json:"filename"`
	Repeats     int      `yaml:"repeats" json:"repeats"`
	MU          *float64 `yaml:"mu,omitempty" json:"mu,omitempty"`
	DoseRate    *float64 `yaml:"dr,omitempty" json:"dose_rate,omitempty"`
	PatientID   *string  `yaml:"ptid,omitempty" json:"patient_id,omitempty"`
	PatientName *string  `yaml:"ptname,omitempty" json:"patient_name,omitempty"`
}

// Sequence - именованная последовательность полей.
type Sequence struct {
	Name  string         `yaml:"name" json:"name"`
	Type  string         `yaml:"type" json:"type"`
	Beams []SequenceBeam `yaml:"beams" json:"beams"`
}

// SequenceGroup - последовательности одного типа.
type SequenceGroup struct {
	Type      string     `json:"type"`
	Sequences []Sequence `json:"sequences"`
}

// ConvertRequest - конвертировать план DICOM в EFS файлы.
type ConvertRequest struct {
	Path   string `json:"path" binding:"required"`
	OutDir string `json:"out_dir"`
}

// ConvertedBeam - записанный EFS файл пучка.
type ConvertedBeam struct {
	BeamNumber int     `json:"beam_number"`
	BeamName   string  `json:"beam_name"`
	Technique  string  `json:"technique"`
	TotalMU    float64 `json:"total_mu"`
	Segments   int     `json:"segments"`
	Path       string  `json:"path"`
}

// ConvertResult - итог конвертации плана.
type ConvertResult struct {
	Files    []ConvertedBeam `json:"files"`
	Failures []string        `json:"failures,omitempty"`
}

// LinacEvent - событие сессии для Kafka и MQTT.
type LinacEvent struct {
	SessionID   string    `json:"session_id"`
	MachineName string    `json:"machine_name"`
	Kind        string    `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	Phase       string    `json:"phase,omitempty"`
	State       string    `json:"state,omitempty"`
	StateCode   *int      `json:"state_code,omitempty"`
	Target      string    `json:"target,omitempty"`
	Field       string    `json:"field,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	Index       *int      `json:"index,omitempty"`
	Error       string    `json:"error,omitempty"`
}
