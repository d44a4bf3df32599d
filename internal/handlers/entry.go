package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"equeue/internal/journal"
	"equeue/internal/models"
	"equeue/internal/queue"
	"equeue/internal/response"

	"github.com/gin-gonic/gin"
)

// Handler держит сервисы ядра очереди для HTTP-слоя.
type Handler struct {
	Entries   *queue.EntryService
	Positions *queue.PositionCalculator
	Journal   *journal.Service
}

func New(entries *queue.EntryService, positions *queue.PositionCalculator, jrnl *journal.Service) *Handler {
	return &Handler{Entries: entries, Positions: positions, Journal: jrnl}
}

// EntryResponse — запись очереди в ответе API, с живой позицией среди ожидающих.
type EntryResponse struct {
	ID                   uint    `json:"id"`
	QueueID              uint    `json:"queue_id"`
	UserID               uint    `json:"user_id"`
	Status               string  `json:"status"`
	CreatedAt            string  `json:"created_at"`
	StatusUpdatedAt      string  `json:"status_updated_at"`
	EntryTimeOrg         *string `json:"entry_time_org,omitempty"`
	NotificationMinutes  *int    `json:"notification_minutes,omitempty"`
	EntryPositionSelf    *int    `json:"entry_position_self,omitempty"`
	SequentialNumberSelf *int    `json:"sequential_number_self,omitempty"`
	NotificationPosition *int    `json:"notification_position,omitempty"`
	ActualStartTime      *string `json:"actual_start_time,omitempty"`
	ActualEndTime        *string `json:"actual_end_time,omitempty"`
	Position             int     `json:"position"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func entryResponse(e *models.QueueEntry, position int) EntryResponse {
	return EntryResponse{
		ID:                   e.ID,
		QueueID:              e.QueueID,
		UserID:               e.UserID,
		Status:               string(e.Status),
		CreatedAt:            e.CreatedAt.Format(time.RFC3339),
		StatusUpdatedAt:      e.StatusUpdatedAt.Format(time.RFC3339),
		EntryTimeOrg:         formatTime(e.EntryTimeOrg),
		NotificationMinutes:  e.NotificationMinutes,
		EntryPositionSelf:    e.EntryPositionSelf,
		SequentialNumberSelf: e.SequentialNumberSelf,
		NotificationPosition: e.NotificationPosition,
		ActualStartTime:      formatTime(e.ActualStartTime),
		ActualEndTime:        formatTime(e.ActualEndTime),
		Position:             position,
	}
}

// respondError переводит типизированные ошибки ядра в HTTP-коды.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrQueueNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "QUEUE_NOT_FOUND",
			Message: "Очередь не найдена",
		})
	case errors.Is(err, queue.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ENTRY_NOT_FOUND",
			Message: "Запись не найдена",
		})
	case errors.Is(err, queue.ErrForbidden):
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Недостаточно прав",
			Details: err.Error(),
		})
	case errors.Is(err, queue.ErrConflict):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "CONFLICT",
			Message: "Запись изменена параллельным запросом",
			Details: err.Error(),
		})
	case errors.Is(err, queue.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Некорректный запрос",
			Details: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Внутренняя ошибка сервера",
			Details: err.Error(),
		})
	}
}

func parseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ID",
			Message: "Неверный идентификатор",
		})
		return 0, false
	}
	return uint(v), true
}

type CreateEntryRequest struct {
	// user_id заполняет администратор, записывая другого пользователя
	UserID               *uint   `json:"user_id"`
	Date                 string  `json:"date"`
	Time                 string  `json:"time"`
	NotificationMinutes  *int    `json:"notification_minutes"`
	NotificationPosition *int    `json:"notification_position"`
	Comment              *string `json:"comment"`
}

// CreateEntryHandler обрабатывает вступление в очередь
// @Summary		Вступление в очередь
// @Description	Создаёт запись в очереди; для организационной очереди обязательны date и time
// @Tags			entries
// @Accept			json
// @Produce		json
// @Param			id		path		string				true	"ID очереди"
// @Param			entry	body		CreateEntryRequest	true	"Параметры записи"
// @Security		BearerAuth
// @Success		201	{object}	EntryResponse			"Созданная запись с позицией в очереди"
// @Failure		400	{object}	response.ErrorResponse	"Поля не соответствуют типу очереди (INVALID_REQUEST)"
// @Failure		403	{object}	response.ErrorResponse	"Запись другого пользователя без прав администратора (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Router			/api/queues/{id}/entries [post]
func (h *Handler) CreateEntryHandler(c *gin.Context) {
	queueID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetUint("userID")
	entry, err := h.Entries.Create(queue.CreateEntryInput{
		QueueID:              queueID,
		TargetUserID:         req.UserID,
		Date:                 req.Date,
		Time:                 req.Time,
		NotificationMinutes:  req.NotificationMinutes,
		NotificationPosition: req.NotificationPosition,
		Comment:              req.Comment,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	position, err := h.Positions.Position(entry.QueueID, entry.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entryResponse(entry, position))
}

// LeaveQueueHandler обрабатывает выход из очереди
// @Summary		Выход из очереди
// @Description	Удаляет запись пользователя в очереди, журналируя действие left
// @Tags			entries
// @Produce		json
// @Param			id	path	string	true	"ID очереди"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Успешный выход из очереди"
// @Failure		404	{object}	response.ErrorResponse		"Очередь или запись не найдена"
// @Router			/api/queues/{id}/leave [post]
func (h *Handler) LeaveQueueHandler(c *gin.Context) {
	queueID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID := c.GetUint("userID")
	if err := h.Entries.Leave(queueID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Вы успешно вышли из очереди"})
}

// GetEntryHandler возвращает запись с её живой позицией
// @Summary		Получение записи
// @Tags			entries
// @Produce		json
// @Param			id	path	string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	EntryResponse
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Router			/api/entries/{id} [get]
func (h *Handler) GetEntryHandler(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.Entries.Get(entryID)
	if err != nil {
		respondError(c, err)
		return
	}
	position, err := h.Positions.Position(entry.QueueID, entry.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryResponse(entry, position))
}

type UpdateStatusRequest struct {
	Status  string  `json:"status" binding:"required"`
	Comment *string `json:"comment"`
}

// UpdateEntryStatusHandler применяет переход статуса записи
// @Summary		Смена статуса записи
// @Description	Применяет переход машины статусов с проверкой прав инициатора
// @Tags			entries
// @Accept			json
// @Produce		json
// @Param			id		path	string				true	"ID записи"
// @Param			status	body	UpdateStatusRequest	true	"Новый статус"
// @Security		BearerAuth
// @Success		200	{object}	EntryResponse
// @Failure		400	{object}	response.ErrorResponse	"Переход не поддерживается (INVALID_REQUEST)"
// @Failure		403	{object}	response.ErrorResponse	"Недостаточно прав (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Параллельное изменение (CONFLICT)"
// @Router			/api/entries/{id}/status [patch]
func (h *Handler) UpdateEntryStatusHandler(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetUint("userID")
	entry, err := h.Entries.UpdateStatus(entryID, models.EntryStatus(req.Status), userID, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	position, err := h.Positions.Position(entry.QueueID, entry.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryResponse(entry, position))
}

type UpdateEntryRequest struct {
	QueueID              *uint `json:"queue_id"`
	UserID               *uint `json:"user_id"`
	NotificationMinutes  *int  `json:"notification_minutes"`
	NotificationPosition *int  `json:"notification_position"`
}

// UpdateEntryHandler меняет настройки уведомлений записи
// @Summary		Изменение настроек записи
// @Description	Меняет только настройки уведомлений; очередь и владелец записи неизменяемы
// @Tags			entries
// @Accept			json
// @Produce		json
// @Param			id		path	string				true	"ID записи"
// @Param			patch	body	UpdateEntryRequest	true	"Изменяемые поля"
// @Security		BearerAuth
// @Success		200	{object}	EntryResponse
// @Failure		400	{object}	response.ErrorResponse	"Попытка сменить очередь или владельца (INVALID_REQUEST)"
// @Failure		403	{object}	response.ErrorResponse	"Недостаточно прав (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Router			/api/entries/{id} [patch]
func (h *Handler) UpdateEntryHandler(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetUint("userID")
	entry, err := h.Entries.Update(entryID, queue.EntryPatch{
		QueueID:              req.QueueID,
		UserID:               req.UserID,
		NotificationMinutes:  req.NotificationMinutes,
		NotificationPosition: req.NotificationPosition,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	position, err := h.Positions.Position(entry.QueueID, entry.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryResponse(entry, position))
}

// RemoveEntryHandler удаляет запись
// @Summary		Удаление записи
// @Description	Удаляет запись; журнал аудита сохраняет историю и после удаления
// @Tags			entries
// @Produce		json
// @Param			id	path	string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		403	{object}	response.ErrorResponse	"Недостаточно прав (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Router			/api/entries/{id} [delete]
func (h *Handler) RemoveEntryHandler(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID := c.GetUint("userID")
	if err := h.Entries.Remove(entryID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Запись удалена"})
}

// GetPositionHandler возвращает живую позицию записи среди ожидающих
// @Summary		Позиция записи в очереди
// @Tags			queue
// @Produce		json
// @Param			id		path	string	true	"ID очереди"
// @Param			entryID	path	string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	map[string]int	"position: 0, если запись не ожидает"
// @Router			/api/queues/{id}/entries/{entryID}/position [get]
func (h *Handler) GetPositionHandler(c *gin.Context) {
	queueID, ok := parseID(c, "id")
	if !ok {
		return
	}
	entryID, ok := parseID(c, "entryID")
	if !ok {
		return
	}
	position, err := h.Positions.Position(queueID, entryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": position})
}

// GetNextEntryHandler возвращает следующую запись на обслуживание
// @Summary		Следующая запись очереди
// @Description	Первая ожидающая запись; сама очередь при этом не двигается
// @Tags			queue
// @Produce		json
// @Param			id	path	string	true	"ID очереди"
// @Security		BearerAuth
// @Success		200	{object}	EntryResponse
// @Success		204	"Очередь пуста"
// @Router			/api/queues/{id}/next [get]
func (h *Handler) GetNextEntryHandler(c *gin.Context) {
	queueID, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.Positions.Next(queueID)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, entryResponse(entry, 1))
}
