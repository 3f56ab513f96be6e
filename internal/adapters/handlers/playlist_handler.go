package handlers

import (
	"net/http"

	"github.com/iwtcode/icomService/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// GetPlaylist возвращает очередь полей сессии.
// @Summary Очередь полей
// @Description Возвращает поля очереди, курсор, флаг воспроизведения и статус сессии.
// @Tags Playlist
// @Produce json
// @Param session_id path string true "ID сессии"
// @Success 200 {object} models.PlaylistResponse "Состояние очереди"
// @Failure 404 {object} models.ErrorResponse "Сессия не найдена"
// @Router /playlist/{session_id} [get]
func (h *Handler) GetPlaylist(c *gin.Context) {
	playlist, err := h.usecase.GetPlaylist(c.Param("session_id"))
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": playlist})
}

// EnqueueFiles добавляет файлы в очередь.
// @Summary Добавить файлы в очередь
// @Description Добавляет EFS файлы как есть, а планы DICOM (.dcm) конвертирует, по полю на пучок. Запускает воспроизведение.
// @Tags Playlist
// @Accept json
// @Produce json
// @Param input body models.FilesRequest true "Пути к файлам и подмены значений"
// @Success 200 {object} models.PlaylistResponse "Состояние очереди"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Failure 404 {object} models.ErrorResponse "Сессия не найдена"
// @Failure 422 {object} models.ErrorResponse "Часть файлов не добавлена"
// @Router /playlist/files [post]
func (h *Handler) EnqueueFiles(c *gin.Context) {
	var req models.FilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	h.logger.Info("Attempting to enqueue files", "sessionID", req.SessionID, "count", len(req.Paths))

	playlist, err := h.usecase.EnqueueFiles(req)
	if err != nil && playlist != nil {
		h.UnprocessableEntity(c, err, "playlist", playlist)
		return
	}
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": playlist})
}

// StartSequence добавляет в очередь последовательность каталога.
// @Summary Запустить последовательность
// @Description Добавляет в очередь пучки последовательности с учетом повторов и подмен и запускает воспроизведение.
// @Tags Playlist
// @Accept json
// @Produce json
// @Param input body models.SequenceRequest true "ID сессии и имя последовательности"
// @Success 200 {object} models.PlaylistResponse "Состояние очереди"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Failure 404 {object} models.ErrorResponse "Сессия или последовательность не найдена"
// @Failure 500 {object} models.ErrorResponse "Внутренняя ошибка сервера"
// @Router /playlist/sequence [post]
func (h *Handler) StartSequence(c *gin.Context) {
	var req models.SequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	h.logger.Info("Attempting to start sequence", "sessionID", req.SessionID, "sequence", req.Name)

	playlist, err := h.usecase.StartSequence(req)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": playlist})
}

// ControlPlaylist выполняет действие оператора.
// @Summary Управление очередью
// @Description play, pause, stop, skip, previous, repeat, restart. Перемещения курсора дважды отменяют поле на аппарате.
// @Tags Playlist
// @Accept json
// @Produce json
// @Param action path string true "Действие" Enums(play, pause, stop, skip, previous, repeat, restart)
// @Param input body models.SessionRequest true "ID сессии"
// @Success 200 {object} models.PlaylistResponse "Состояние очереди"
// @Failure 400 {object} models.ErrorResponse "Неизвестное действие"
// @Failure 404 {object} models.ErrorResponse "Сессия не найдена"
// @Failure 409 {object} models.ErrorResponse "Сессия не подключена"
// @Router /playlist/control/{action} [post]
func (h *Handler) ControlPlaylist(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Missing or invalid SessionID")
		return
	}

	action := c.Param("action")
	h.logger.Info("Playlist action requested", "sessionID", req.SessionID, "action", action)

	playlist, err := h.usecase.Control(req.SessionID, action)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": playlist})
}
