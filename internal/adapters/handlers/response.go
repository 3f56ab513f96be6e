package handlers

import (
	"net/http"

	"github.com/iwtcode/icomService/internal/services/linac_service"
	"github.com/iwtcode/icomService/pkg/errors"
	"github.com/iwtcode/icomService/pkg/sequencer"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// errorRules - ответы API для известных ошибок сервиса.
var errorRules = []errors.Rule{
	{Target: linac_service.ErrSessionNotFound, Code: errors.NotFoundErrorCode, Message: errors.NotFound},
	{Target: linac_service.ErrSequenceNotFound, Code: errors.NotFoundErrorCode, Message: errors.NotFound},
	{Target: gorm.ErrRecordNotFound, Code: errors.NotFoundErrorCode, Message: errors.NotFound},
	{Target: linac_service.ErrInvalidAddress, Code: errors.BadRequestCode, Message: errors.BadRequest},
	{Target: linac_service.ErrUnknownAction, Code: errors.BadRequestCode, Message: errors.BadRequest},
	{Target: linac_service.ErrAlreadyActive, Code: errors.ConflictErrorCode, Message: errors.Conflict},
	{Target: sequencer.ErrNotConnected, Code: errors.ConflictErrorCode, Message: errors.Conflict},
}

// ErrorResponse возвращает стандартизированный ответ с ошибкой
func (h *Handler) ErrorResponse(c *gin.Context, err error, statusCode int, message string, showError bool) {
	errorMessage := message
	if showError && err != nil {
		errorMessage = message + ": " + err.Error()
	}

	h.logger.Error(message, "error", err, "statusCode", statusCode)
	c.AbortWithStatusJSON(statusCode, gin.H{
		"status": "error",
		"error": gin.H{
			"code":    statusCode,
			"message": errorMessage,
		},
	})
}

// Fail выбирает код ответа по ошибке сервиса.
func (h *Handler) Fail(c *gin.Context, err error) {
	appErr := errors.Classify(err, errorRules...)
	h.ErrorResponse(c, appErr.Err, appErr.Code, appErr.Message, appErr.IsUserFacing)
}

// BadRequest возвращает ошибку 400
func (h *Handler) BadRequest(c *gin.Context, err error, message string) {
	if message == "" {
		message = errors.BadRequest
	}
	h.ErrorResponse(c, err, http.StatusBadRequest, message, true)
}

// InternalError возвращает ошибку 500
func (h *Handler) InternalError(c *gin.Context, err error) {
	h.ErrorResponse(c, err, http.StatusInternalServerError, errors.InternalServerError, false)
}

// UnprocessableEntity возвращает ошибку 422 вместе с частичным результатом
func (h *Handler) UnprocessableEntity(c *gin.Context, err error, key string, result interface{}) {
	h.logger.Warn("Request partially failed", "error", err)
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"status": "error",
		"error": gin.H{
			"code":    http.StatusUnprocessableEntity,
			"message": errors.UnprocessableEntity + ": " + err.Error(),
		},
		key: result,
	})
}
