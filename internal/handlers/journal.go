package handlers

import (
	"net/http"
	"strconv"
	"time"

	"equeue/internal/journal"
	"equeue/internal/models"
	"equeue/internal/response"

	"github.com/gin-gonic/gin"
)

// JournalRecordResponse — строка журнала аудита в ответе API.
type JournalRecordResponse struct {
	LogID             uint    `json:"log_id"`
	EntryID           uint    `json:"entry_id"`
	Action            string  `json:"action"`
	PrevStatus        *string `json:"prev_status"`
	NewStatus         *string `json:"new_status"`
	LogTime           string  `json:"log_time"`
	InitiatedByUserID uint    `json:"initiated_by_user_id"`
	Comment           *string `json:"comment,omitempty"`
}

func journalResponse(rec models.JournalRecord) JournalRecordResponse {
	r := JournalRecordResponse{
		LogID:             rec.ID,
		EntryID:           rec.EntryID,
		Action:            string(rec.Action),
		LogTime:           rec.LogTime.Format(time.RFC3339),
		InitiatedByUserID: rec.InitiatedByUserID,
		Comment:           rec.Comment,
	}
	if rec.PrevStatus != nil {
		s := string(*rec.PrevStatus)
		r.PrevStatus = &s
	}
	if rec.NewStatus != nil {
		s := string(*rec.NewStatus)
		r.NewStatus = &s
	}
	return r
}

// ListJournalHandler возвращает журнал аудита
// @Summary		Журнал аудита
// @Description	История мутаций записей, свежие первыми; пустой фильтр возвращает всю историю
// @Tags			journal
// @Produce		json
// @Param			entry_id	query	int		false	"Фильтр по записи"
// @Param			user_id		query	int		false	"Фильтр по инициатору"
// @Param			action		query	string	false	"Фильтр по действию"
// @Security		BearerAuth
// @Success		200	{array}		JournalRecordResponse
// @Failure		400	{object}	response.ErrorResponse	"Неверные параметры фильтра (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/journal [get]
func (h *Handler) ListJournalHandler(c *gin.Context) {
	var filter journal.Filter

	if v := c.Query("entry_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Неверный параметр entry_id",
			})
			return
		}
		u := uint(id)
		filter.EntryID = &u
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Неверный параметр user_id",
			})
			return
		}
		u := uint(id)
		filter.InitiatedByUserID = &u
	}
	if v := c.Query("action"); v != "" {
		a := models.JournalAction(v)
		filter.Action = &a
	}

	records, err := h.Journal.Query(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки журнала",
			Details: err.Error(),
		})
		return
	}

	result := make([]JournalRecordResponse, 0, len(records))
	for _, rec := range records {
		result = append(result, journalResponse(rec))
	}
	c.JSON(http.StatusOK, result)
}
