package handlers

import (
	"net/http"
	"strconv"

	"github.com/iwtcode/icomService/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// GetSequences возвращает каталог последовательностей.
// @Summary Каталог последовательностей
// @Description Возвращает последовательности, сгруппированные по типу. Каталог перечитывается при изменении файла.
// @Tags Sequences
// @Produce json
// @Success 200 {object} models.SequencesResponse "Каталог"
// @Router /sequences [get]
func (h *Handler) GetSequences(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "groups": h.usecase.GetSequences()})
}

// ConvertPlan конвертирует план DICOM в EFS файлы.
// @Summary Конвертировать план
// @Description Пишет по одному EFS файлу на пучок. Ошибка одного пучка не прерывает остальные.
// @Tags Plans
// @Accept json
// @Produce json
// @Param input body models.ConvertRequest true "Путь к плану и каталог для EFS файлов"
// @Success 200 {object} models.ConvertResponse "Записанные файлы и ошибки пучков"
// @Failure 400 {object} models.ErrorResponse "Неверный формат запроса"
// @Failure 500 {object} models.ErrorResponse "План не прочитан"
// @Router /plans/convert [post]
func (h *Handler) ConvertPlan(c *gin.Context) {
	var req models.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err, "Invalid request payload")
		return
	}

	h.logger.Info("Attempting to convert plan", "path", req.Path)

	result, err := h.usecase.ConvertPlan(req)
	if err != nil {
		h.ErrorResponse(c, err, http.StatusInternalServerError, "Plan conversion failed", true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": result})
}

// GetDeliveries возвращает историю доставки полей сессии.
// @Summary История доставки
// @Description Возвращает записи о доставленных и неудачных полях, новые первыми.
// @Tags Deliveries
// @Produce json
// @Param session_id path string true "ID сессии"
// @Param limit query int false "Максимум записей" default(100)
// @Success 200 {object} models.DeliveriesResponse "История доставки"
// @Failure 400 {object} models.ErrorResponse "Неверный limit"
// @Failure 500 {object} models.ErrorResponse "Внутренняя ошибка сервера"
// @Router /deliveries/{session_id} [get]
func (h *Handler) GetDeliveries(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			h.BadRequest(c, err, "Invalid limit")
			return
		}
		limit = v
	}

	records, err := h.usecase.GetDeliveries(c.Param("session_id"), limit)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeliveriesResponse{Status: "ok", Deliveries: records})
}
