// Package icom описывает два канала связи с LINAC по протоколу iCOM:
// канал управления (FX), через который отправляются поля, и канал
// мониторинга (VX), из которого читается состояние аппарата.
package icom

import (
	"errors"
	"fmt"
	"time"

	"github.com/iwtcode/icomService/pkg/efs"
)

// State - рабочее состояние LINAC. Переходы задает аппарат.
type State int

const (
	StateUnknown State = iota
	StatePreparatory
	StateConfirmSettings
	StateReadyToStart
	StateSegmentStart
	StateSegmentIrradiate
	StateSegmentInterrupt
	StateSegmentInterrupted
	StateSegmentRestart
	StateSegmentTerminate
	StateSegmentPause
	StateFieldTerminate
	StateTerminateChecking
	StateFieldTerminated
	StateMoveOnly
)

var stateNames = [...]string{
	"UNKNOWN/INVALID",
	"PREPARATORY",
	"CONFIRM SETTINGS",
	"READY TO START",
	"SEGMENT START",
	"SEGMENT IRRADIATE",
	"SEGMENT INTERRUPT",
	"SEGMENT INTERRUPTED",
	"SEGMENT RESTART",
	"SEGMENT TERMINATE",
	"SEGMENT PAUSE",
	"FIELD TERMINATE",
	"TERMINATE CHECKING",
	"FIELD TERMINATED",
	"MOVE ONLY",
}

// Valid сообщает, входит ли значение в перечисление.
func (s State) Valid() bool {
	return s >= StateUnknown && int(s) < len(stateNames)
}

func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("STATE(%d)", int(s))
	}
	return stateNames[s]
}

// DeliveryStates - состояния, которые проходит поле после отправки.
var DeliveryStates = []State{
	StateConfirmSettings,
	StateReadyToStart,
	StateSegmentIrradiate,
	StateFieldTerminated,
}

// Result - код результата вызова библиотеки iCOM.
type Result int

const (
	ResultOK                      Result = 1
	ResultInvalidConnectionHandle Result = -2
	ResultInvalidMessageHandle    Result = -3
	ResultTimeout                 Result = -4
	ResultConnectionInProgress    Result = -5
	ResultNotConnected            Result = -6
	ResultInvalidControlPointNum  Result = -7
	ResultDuplicateItem           Result = -8
	ResultMissingControlPoint     Result = -9
	ResultInvalidProtocolVersion  Result = -10
	ResultTooManyTags             Result = -11
	ResultConnectionFailed        Result = -12
	ResultSendInProgress          Result = -13
	ResultInvalidTag              Result = -14
	ResultOutOfMemory             Result = -15
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultInvalidConnectionHandle:
		return "INVALID_CONNECTION_HANDLE"
	case ResultInvalidMessageHandle:
		return "INVALID_MESSAGE_HANDLE"
	case ResultTimeout:
		return "TIMEOUT_ERROR"
	case ResultConnectionInProgress:
		return "CONNECTION_IN_PROGRESS"
	case ResultNotConnected:
		return "NOT_CONNECTED"
	case ResultInvalidControlPointNum:
		return "INVALID_CONTROL_POINT_NUM"
	case ResultDuplicateItem:
		return "DUPLICATE_ITEM"
	case ResultMissingControlPoint:
		return "MISSING_CONTROL_POINT"
	case ResultInvalidProtocolVersion:
		return "INVALID_PROTOCOL_VERSION"
	case ResultTooManyTags:
		return "TOO_MANY_TAGS"
	case ResultConnectionFailed:
		return "CONNECTION_FAILED"
	case ResultSendInProgress:
		return "SEND_IN_PROGRESS"
	case ResultInvalidTag:
		return "INVALID_TAG"
	case ResultOutOfMemory:
		return "OUT_OF_MEMORY"
	default:
		return fmt.Sprintf("RESULT(%d)", int(r))
	}
}

// Режимы работы аппарата.
const (
	ModeTherapyTreatment       = 1
	ModeTherapyCheckRadiograph = 3
	ModeTherapyFinishBeam      = 5
	ModeQuickTreatment         = 8
	ModeExternalSystemVerify   = 9
	ModeService                = 10
	ModeUnknown                = -1
)

// ConfirmAccept - код подтверждения, который снимает аппарат с CONFIRM SETTINGS.
const ConfirmAccept = 1

// Стандартные тайм-ауты каналов.
const (
	DefaultControlTimeout = 1000 * time.Millisecond
	DefaultMonitorTimeout = 10000 * time.Millisecond
	DefaultPollTimeout    = 1000 * time.Millisecond
)

// Handle - дескриптор соединения. Положительные значения валидны.
type Handle int64

// Message - дескриптор сообщения. 0 означает отсутствие сообщения.
type Message int64

var (
	// ErrNativeUnavailable - библиотека iCOMClient не собрана в бинарник.
	ErrNativeUnavailable = errors.New("icom: native iCOM client is not available in this build")
	// ErrNotConnected - вызов с закрытым или невалидным соединением.
	ErrNotConnected = errors.New("icom: not connected")
)

// CallError - вызов библиотеки вернул код ошибки.
type CallError struct {
	Op   string
	Code Result
}

func (e *CallError) Error() string {
	return fmt.Sprintf("icom: %s failed: %s (%d)", e.Op, e.Code, int(e.Code))
}

// Is позволяет сравнивать ошибки недоступного соединения с ErrNotConnected.
func (e *CallError) Is(target error) bool {
	if target != ErrNotConnected {
		return false
	}
	switch e.Code {
	case ResultNotConnected, ResultInvalidConnectionHandle, ResultConnectionFailed:
		return true
	}
	return false
}

// ControlChannel - канал управления (FX).
type ControlChannel interface {
	Connect(address string, timeout time.Duration, machineName string) (Handle, error)
	// ConnectionState возвращает положительное значение, пока соединение живо.
	ConnectionState(h Handle) int
	BeginMessage(h Handle) (Message, error)
	InsertTagValue(m Message, code efs.TagCode, value string, controlPoint int) error
	// SendMessage возвращает ответ аппарата; 0 - ответа нет.
	SendMessage(m Message) (Message, error)
	ErrorCode(response Message) int
	ErrorTag(response Message) (efs.TagCode, error)
	SendCancel(h Handle) error
	SendConfirm(h Handle, code int) error
	DeleteMessage(m Message) error
	Disconnect(h Handle) error
}

// MonitorChannel - канал мониторинга (VX).
type MonitorChannel interface {
	Connect(address string, timeout time.Duration) (Handle, error)
	// WaitForMessage ждет сообщение не дольше timeout; 0 - сообщения нет.
	// Ошибка означает, что соединение потеряно.
	WaitForMessage(h Handle, timeout time.Duration) (Message, error)
	State(m Message) (State, error)
	DeleteMessage(m Message) error
	Disconnect(h Handle) error
}
