package handlers

import (
	"net/http"
	"time"

	"equeue/internal/models"
	"equeue/internal/response"
	"equeue/internal/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateQueueRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=organizational self_organized"`
}

type QueueResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatorID uint   `json:"creator_id"`
}

// CreateQueueHandler создаёт очередь
// @Summary		Создание очереди
// @Description	Создаёт очередь указанного типа; создатель становится её администратором
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			queue	body		CreateQueueRequest	true	"Параметры очереди"
// @Security		BearerAuth
// @Success		201	{object}	QueueResponse
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/queues [post]
func CreateQueueHandler(c *gin.Context) {
	var req CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetUint("userID")
	q := models.Queue{
		Name:      req.Name,
		Type:      models.QueueType(req.Type),
		CreatorID: userID,
	}
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&q).Error; err != nil {
			return err
		}
		return tx.Create(&models.QueueAdmin{QueueID: q.ID, UserID: userID}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка создания очереди",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, QueueResponse{
		ID:        q.ID,
		Name:      q.Name,
		Type:      string(q.Type),
		CreatorID: q.CreatorID,
	})
}

type AddAdminRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// AddQueueAdminHandler добавляет администратора очереди
// @Summary		Добавление администратора
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id		path	string			true	"ID очереди"
// @Param			admin	body	AddAdminRequest	true	"Пользователь"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		403	{object}	response.ErrorResponse	"Добавлять администраторов может только администратор (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Очередь или пользователь не найдены"
// @Router			/api/queues/{id}/admins [post]
func (h *Handler) AddQueueAdminHandler(c *gin.Context) {
	queueID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AddAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var q models.Queue
	if err := storage.DB.First(&q, queueID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "QUEUE_NOT_FOUND",
			Message: "Очередь не найдена",
		})
		return
	}

	actingID := c.GetUint("userID")
	var count int64
	storage.DB.Model(&models.QueueAdmin{}).
		Where("queue_id = ? AND user_id = ?", queueID, actingID).
		Count(&count)
	if count == 0 {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Добавлять администраторов может только администратор очереди",
		})
		return
	}

	var user models.User
	if err := storage.DB.First(&user, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "USER_NOT_FOUND",
			Message: "Пользователь не найден",
		})
		return
	}

	if err := storage.DB.Create(&models.QueueAdmin{QueueID: queueID, UserID: req.UserID}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка добавления администратора",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Администратор добавлен"})
}

type Participant struct {
	EntryID  uint   `json:"entry_id"`
	UserID   uint   `json:"user_id"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Position int    `json:"position"`
}

// QueueStatusResponse содержит состояние очереди и список ожидающих участников.
type QueueStatusResponse struct {
	QueueID      uint          `json:"queue_id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants"`
}

// GetQueueStatusHandler возвращает состояние очереди
// @Summary		Получение статуса очереди
// @Description	Возвращает тип очереди и ожидающих участников с живыми позициями
// @Tags			queue
// @Produce		json
// @Param			id	path	string	true	"ID очереди"
// @Security		BearerAuth
// @Success		200	{object}	QueueStatusResponse
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/queues/{id} [get]
func (h *Handler) GetQueueStatusHandler(c *gin.Context) {
	queueID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var q models.Queue
	if err := storage.DB.First(&q, queueID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "QUEUE_NOT_FOUND",
			Message: "Очередь не найдена",
		})
		return
	}

	entries, err := h.Positions.Waiting(queueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки записей очереди",
			Details: err.Error(),
		})
		return
	}

	// Имена участников подтягиваем одним запросом.
	userIDs := make([]uint, 0, len(entries))
	for _, e := range entries {
		userIDs = append(userIDs, e.UserID)
	}
	userMap := make(map[uint]models.User)
	if len(userIDs) > 0 {
		var users []models.User
		if err := storage.DB.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "DB_ERROR",
				Message: "Ошибка загрузки участников",
				Details: err.Error(),
			})
			return
		}
		for _, u := range users {
			userMap[u.ID] = u
		}
	}

	participants := make([]Participant, 0, len(entries))
	for i, e := range entries {
		p := Participant{
			EntryID:  e.ID,
			UserID:   e.UserID,
			Position: i + 1,
		}
		if u, ok := userMap[e.UserID]; ok {
			p.Name = u.Name
			p.Surname = u.Surname
		}
		participants = append(participants, p)
	}

	c.JSON(http.StatusOK, QueueStatusResponse{
		QueueID:      q.ID,
		Name:         q.Name,
		Type:         string(q.Type),
		CreatedAt:    q.CreatedAt,
		Participants: participants,
	})
}
