package models

import (
	"time"

	"gorm.io/gorm"
)

// EntryStatus — статус записи в очереди.
type EntryStatus string

const (
	StatusWaiting   EntryStatus = "waiting"
	StatusServing   EntryStatus = "serving"
	StatusCompleted EntryStatus = "completed"
	StatusCanceled  EntryStatus = "canceled"
	StatusNoShow    EntryStatus = "no_show"
	StatusLate      EntryStatus = "late"
)

// Valid сообщает, является ли значение одним из известных статусов записи.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusServing, StatusCompleted, StatusCanceled, StatusNoShow, StatusLate:
		return true
	}
	return false
}

// Terminal сообщает, является ли статус конечным. Из конечного статуса
// запись может вернуть в ожидание только администратор.
func (s EntryStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusNoShow, StatusLate:
		return true
	}
	return false
}

type QueueEntry struct {
	gorm.Model
	QueueID uint  `gorm:"index;not null"`
	Queue   Queue `gorm:"foreignKey:QueueID"`
	UserID  uint  `gorm:"index;not null"`
	User    User  `gorm:"foreignKey:UserID"`

	Status          EntryStatus `gorm:"index;not null;default:waiting"`
	StatusUpdatedAt time.Time

	// Поля организационной очереди (запись на дату и время).
	EntryTimeOrg        *time.Time // Назначенное время приёма
	NotificationMinutes *int       // За сколько минут до приёма напомнить

	// Поля живой очереди (порядок по приходу).
	EntryPositionSelf    *int // Позиция среди ожидающих на момент вступления
	SequentialNumberSelf *int // Сквозной номер талона в очереди
	NotificationPosition *int // Напомнить, когда впереди останется N человек

	ActualStartTime *time.Time // Фактическое начало обслуживания
	ActualEndTime   *time.Time // Фактическое окончание обслуживания
}
