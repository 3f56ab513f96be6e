package sequencer

import (
	"errors"
	"fmt"

	"github.com/iwtcode/icomService/pkg/efs"
	"github.com/iwtcode/icomService/pkg/icom"
)

// Каналы iCOM.
const (
	ChannelControl = "FX"
	ChannelMonitor = "VX"
)

var (
	// ErrNotConnected - операция требует установленного соединения.
	ErrNotConnected = errors.New("sequencer: session is not connected")
	// ErrAlreadyConnected - повторный Connect без Close.
	ErrAlreadyConnected = errors.New("sequencer: session is already connected")
)

// ChannelError - сбой на границе библиотеки iCOM: подключение, отправка,
// отключение. Автоматически не повторяется.
type ChannelError struct {
	Channel string
	Op      string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s channel: %s: %v", e.Channel, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// ProtocolError - аппарат отклонил поле, указав код ошибки и тег.
// Поле считается не доставленным и повторно не отправляется.
type ProtocolError struct {
	Field string
	Code  int
	Tag   efs.TagCode
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("field %q rejected: tag %s (%s): %s (code %d)",
		e.Field, e.Tag, efs.TagName(e.Tag), efs.ErrorCategory(e.Code), e.Code)
}

// Reason - причина прерывания ожидания состояния.
type Reason int

const (
	// ReasonInterrupted - оператор снял флаг воспроизведения.
	ReasonInterrupted Reason = iota + 1
	// ReasonDisconnected - канал мониторинга закрыт.
	ReasonDisconnected
	// ReasonStopped - сессия завершается.
	ReasonStopped
)

func (r Reason) String() string {
	switch r {
	case ReasonInterrupted:
		return "interrupted"
	case ReasonDisconnected:
		return "disconnected"
	case ReasonStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SequenceError - ожидание состояния прервано. Поле не отмечается доставленным.
type SequenceError struct {
	Field  string
	Target icom.State
	Reason Reason
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("field %q: wait for %s %s", e.Field, e.Target, e.Reason)
}

// IsDisconnected сообщает, что ошибка означает потерю связи с аппаратом.
func IsDisconnected(err error) bool {
	var seqErr *SequenceError
	if errors.As(err, &seqErr) && seqErr.Reason == ReasonDisconnected {
		return true
	}
	var chErr *ChannelError
	return errors.As(err, &chErr)
}
