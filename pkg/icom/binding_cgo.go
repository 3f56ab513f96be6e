//go:build icom

package icom

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/icom
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/icom -liCOMClient -Wl,-rpath,'$ORIGIN'

#include <stdlib.h>

long iCOMFXConnect(const char* ip, unsigned long timeout, const char* machine);
long iCOMVXConnect(const char* ip, unsigned long timeout);
long iCOMGetConnectionState(long handle);
long iCOMDisconnect(long handle);
long iCOMBeginMessage(long handle);
long iCOMWaitForMessage(long handle, unsigned long timeout);
long iCOMDeleteMessage(long message);
long iCOMSendMessage(long message);
short iCOMGetErrorCode(long response);
long iCOMGetErrorTag(long response, unsigned long* tag);
short iCOMGetState(long message);
long iCOMInsertTagVal(long message, unsigned long tag, const char* value, unsigned short cp);
long iCOMSendCancel(long handle);
long iCOMSendConfirmEx(long handle, int code);
*/
import "C"

import (
	"sync"
	"time"
	"unsafe"

	"github.com/iwtcode/icomService/pkg/efs"
)

// Binding вызывает iCOMClient через cgo. Реализует оба канала.
// Библиотека не потокобезопасна для одного сообщения, поэтому вставка
// тегов и отправка сериализуются.
type Binding struct {
	mu sync.Mutex
}

var (
	_ ControlChannel = (*Binding)(nil)
	_ MonitorChannel = (*monitorBinding)(nil)
)

// Native возвращает привязку к iCOMClient.
func Native() (*Binding, error) {
	return &Binding{}, nil
}

// Monitor возвращает ту же библиотеку в роли канала мониторинга.
func (b *Binding) Monitor() MonitorChannel {
	return &monitorBinding{b: b}
}

func millis(d time.Duration) C.ulong {
	return C.ulong(d / time.Millisecond)
}

func handleResult(op string, rc C.long) (Handle, error) {
	if rc <= 0 {
		return 0, &CallError{Op: op, Code: Result(rc)}
	}
	return Handle(rc), nil
}

func statusResult(op string, rc C.long) error {
	if Result(rc) != ResultOK {
		return &CallError{Op: op, Code: Result(rc)}
	}
	return nil
}

// Connect открывает канал управления.
func (b *Binding) Connect(address string, timeout time.Duration, machineName string) (Handle, error) {
	cip := C.CString(address)
	defer C.free(unsafe.Pointer(cip))
	cname := C.CString(machineName)
	defer C.free(unsafe.Pointer(cname))

	return handleResult("iCOMFXConnect", C.iCOMFXConnect(cip, millis(timeout), cname))
}

func (b *Binding) ConnectionState(h Handle) int {
	return int(C.iCOMGetConnectionState(C.long(h)))
}

func (b *Binding) BeginMessage(h Handle) (Message, error) {
	rc := C.iCOMBeginMessage(C.long(h))
	if rc <= 0 {
		return 0, &CallError{Op: "iCOMBeginMessage", Code: Result(rc)}
	}
	return Message(rc), nil
}

func (b *Binding) InsertTagValue(m Message, code efs.TagCode, value string, controlPoint int) error {
	cval := C.CString(value)
	defer C.free(unsafe.Pointer(cval))

	b.mu.Lock()
	defer b.mu.Unlock()
	return statusResult("iCOMInsertTagVal", C.iCOMInsertTagVal(C.long(m), C.ulong(code), cval, C.ushort(controlPoint)))
}

func (b *Binding) SendMessage(m Message) (Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rc := C.iCOMSendMessage(C.long(m))
	if rc < 0 {
		return 0, &CallError{Op: "iCOMSendMessage", Code: Result(rc)}
	}
	return Message(rc), nil
}

func (b *Binding) ErrorCode(response Message) int {
	return int(C.iCOMGetErrorCode(C.long(response)))
}

func (b *Binding) ErrorTag(response Message) (efs.TagCode, error) {
	var tag C.ulong
	if err := statusResult("iCOMGetErrorTag", C.iCOMGetErrorTag(C.long(response), &tag)); err != nil {
		return 0, err
	}
	return efs.TagCode(tag), nil
}

func (b *Binding) SendCancel(h Handle) error {
	return statusResult("iCOMSendCancel", C.iCOMSendCancel(C.long(h)))
}

func (b *Binding) SendConfirm(h Handle, code int) error {
	return statusResult("iCOMSendConfirmEx", C.iCOMSendConfirmEx(C.long(h), C.int(code)))
}

func (b *Binding) DeleteMessage(m Message) error {
	if m == 0 {
		return nil
	}
	return statusResult("iCOMDeleteMessage", C.iCOMDeleteMessage(C.long(m)))
}

func (b *Binding) Disconnect(h Handle) error {
	return statusResult("iCOMDisconnect", C.iCOMDisconnect(C.long(h)))
}

type monitorBinding struct {
	b *Binding
}

func (m *monitorBinding) Connect(address string, timeout time.Duration) (Handle, error) {
	cip := C.CString(address)
	defer C.free(unsafe.Pointer(cip))

	return handleResult("iCOMVXConnect", C.iCOMVXConnect(cip, millis(timeout)))
}

func (m *monitorBinding) WaitForMessage(h Handle, timeout time.Duration) (Message, error) {
	rc := C.iCOMWaitForMessage(C.long(h), millis(timeout))
	switch {
	case rc > 0:
		return Message(rc), nil
	case Result(rc) == ResultTimeout || rc == 0:
		return 0, nil
	default:
		return 0, &CallError{Op: "iCOMWaitForMessage", Code: Result(rc)}
	}
}

func (m *monitorBinding) State(msg Message) (State, error) {
	rc := C.iCOMGetState(C.long(msg))
	if Result(rc) == ResultInvalidMessageHandle {
		return StateUnknown, &CallError{Op: "iCOMGetState", Code: ResultInvalidMessageHandle}
	}
	return State(rc), nil
}

func (m *monitorBinding) DeleteMessage(msg Message) error {
	return m.b.DeleteMessage(msg)
}

func (m *monitorBinding) Disconnect(h Handle) error {
	return m.b.Disconnect(h)
}
