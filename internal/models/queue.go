package models

import (
	"gorm.io/gorm"
)

// QueueType определяет правила вступления в очередь.
type QueueType string

const (
	// Организационная очередь: запись на конкретную дату и время.
	QueueTypeOrganizational QueueType = "organizational"
	// Живая очередь: порядок определяется временем прихода.
	QueueTypeSelfOrganized QueueType = "self_organized"
)

type Queue struct {
	gorm.Model
	Name      string    `gorm:"not null"`       // Название очереди
	Type      QueueType `gorm:"index;not null"` // Тип очереди (organizational | self_organized)
	CreatorID uint      `gorm:"index;not null"` // Создатель очереди, автоматически становится администратором
}

// QueueAdmin связывает администратора с очередью.
type QueueAdmin struct {
	gorm.Model
	QueueID uint `gorm:"uniqueIndex:idx_queue_admin;not null"`
	UserID  uint `gorm:"uniqueIndex:idx_queue_admin;not null"`
}
