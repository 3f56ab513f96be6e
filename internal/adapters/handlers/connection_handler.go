package handlers

import (
	"net/http"

	"github.com/iwtcode/icomService/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// CreateConnection создает новое подключение к LINAC.
// @Summary Создать подключение
// @Description Открывает каналы управления (FX) и мониторинга (VX) iCOM и запускает цикл доставки полей.
// @Tags Connection
// @Accept json
// @Produce json
// @Param input body models.ConnectionRequest true "IP адрес LINAC и имя аппарата (e.g., '192.168.30.1')"
// @Success 200 {object} models.CreateConnectionResponse "Успешное создание подключения"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Failure 409 {object} models.ErrorResponse "Подключение к этому адресу уже активно"
// @Failure 500 {object} models.ErrorResponse "Внутренняя ошибка сервера или LINAC недоступен"
// @Router /connect [post]
func (h *Handler) CreateConnection(c *gin.Context) {
	var req models.ConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	h.logger.Info("Attempting to create a new connection", "ip", req.IP, "machine", req.MachineName)

	connInfo, err := h.usecase.CreateConnection(req)
	if err != nil {
		h.Fail(c, err)
		return
	}

	h.logger.Info("Successfully created connection", "sessionID", connInfo.SessionID)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connection_info": connInfo})
}

// GetConnections возвращает список всех сессий.
// @Summary Получить список подключений
// @Description Возвращает текущий пул сессий LINAC с их состоянием.
// @Tags Connection
// @Produce json
// @Success 200 {object} models.GetConnectionsResponse "Список подключений"
// @Router /connect [get]
func (h *Handler) GetConnections(c *gin.Context) {
	connections := h.usecase.GetAllConnections()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"pool_size":   len(connections),
		"connections": connections,
	})
}

// GetConnection возвращает состояние одной сессии.
// @Summary Состояние подключения
// @Description Возвращает статус, фазу цикла доставки и последнее состояние аппарата для сессии.
// @Tags Connection
// @Produce json
// @Param session_id path string true "ID сессии"
// @Success 200 {object} models.CreateConnectionResponse "Состояние подключения"
// @Failure 404 {object} models.ErrorResponse "Подключение не найдено"
// @Router /connect/{session_id} [get]
func (h *Handler) GetConnection(c *gin.Context) {
	connInfo, err := h.usecase.GetConnection(c.Param("session_id"))
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connection_info": connInfo})
}

// DeleteConnection удаляет подключение по SessionID.
// @Summary Удалить подключение
// @Description Останавливает цикл доставки, закрывает каналы iCOM и удаляет запись из БД.
// @Tags Connection
// @Accept json
// @Produce json
// @Param input body models.SessionRequest true "ID сессии для удаления"
// @Success 200 {object} models.MessageResponse "Сообщение об успешном удалении"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Failure 404 {object} models.ErrorResponse "Подключение не найдено"
// @Router /connect [delete]
func (h *Handler) DeleteConnection(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Missing or invalid SessionID")
		return
	}

	h.logger.Info("Attempting to delete connection", "sessionID", req.SessionID)

	if err := h.usecase.DeleteConnection(req.SessionID); err != nil {
		h.Fail(c, err)
		return
	}

	h.logger.Info("Successfully deleted connection", "sessionID", req.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Session " + req.SessionID + " disconnected successfully",
	})
}
