//go:build !icom

package icom

// Binding без тега сборки icom: iCOMClient не подключен.
type Binding struct{}

// Native сообщает, что нативный клиент недоступен; вызывающий код
// переключается на симулятор.
func Native() (*Binding, error) {
	return nil, ErrNativeUnavailable
}

// Monitor не вызывается: Native всегда возвращает ошибку.
func (b *Binding) Monitor() MonitorChannel {
	return nil
}
