package errors

import (
	"errors"
	"fmt"
)

const (
	InternalServerError = "internal server error"
	BadRequest          = "bad request"
	NotFound            = "not_found"
	Conflict            = "conflict"
	UnprocessableEntity = "unprocessable entity"

	BadRequestCode          = 400
	NotFoundErrorCode       = 404
	ConflictErrorCode       = 409
	UnprocessableEntityCode = 422
	InternalServerErrorCode = 500
)

// AppError представляет собой стандартизированную структуру ошибки для API.
type AppError struct {
	Code         int    `json:"code"`    // HTTP статус код
	Message      string `json:"message"` // Сообщение для клиента
	Err          error  `json:"-"`       // Внутренняя ошибка, не для клиента
	IsUserFacing bool   `json:"-"`       // Флаг, указывающий, можно ли показывать `Err`
}

func (a *AppError) Error() string {
	if a == nil {
		return ""
	}
	if a.Err != nil {
		return fmt.Sprintf("%s (code: %d): %v", a.Message, a.Code, a.Err)
	}
	return fmt.Sprintf("%s (code: %d)", a.Message, a.Code)
}

func (a *AppError) Unwrap() error {
	if a == nil {
		return nil
	}
	return a.Err
}

// NewAppError создает новый экземпляр AppError.
func NewAppError(httpCode int, message string, err error, isUserFacing bool) *AppError {
	return &AppError{
		Code:         httpCode,
		Message:      message,
		Err:          err,
		IsUserFacing: isUserFacing,
	}
}

// Rule сопоставляет ошибке ответ API.
type Rule struct {
	Target  error
	Code    int
	Message string
}

// Classify возвращает AppError по первому правилу, чья цель найдена в цепочке
// err. Ошибки без правила - внутренние, их текст клиенту не показывается.
func Classify(err error, rules ...Rule) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, r := range rules {
		if errors.Is(err, r.Target) {
			return NewAppError(r.Code, r.Message, err, true)
		}
	}
	return NewAppError(InternalServerErrorCode, InternalServerError, err, false)
}
