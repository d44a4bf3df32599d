package queue

import (
	"equeue/internal/models"

	"gorm.io/gorm"
)

// PositionCalculator вычисляет живую позицию записи среди ожидающих и
// находит следующую запись на обслуживание. Сам по себе очередь не двигает:
// начало обслуживания — всегда явный вызов UpdateStatus.
type PositionCalculator struct {
	db *gorm.DB
}

func NewPositionCalculator(db *gorm.DB) *PositionCalculator {
	return &PositionCalculator{db: db}
}

// Position возвращает позицию записи (с единицы) среди ожидающих очереди,
// упорядоченных по времени создания. 0 — запись не найдена или не ожидает.
func (p *PositionCalculator) Position(queueID, entryID uint) (int, error) {
	entries, err := p.Waiting(queueID)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if e.ID == entryID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// Next возвращает первую ожидающую запись очереди или nil, если очередь пуста.
func (p *PositionCalculator) Next(queueID uint) (*models.QueueEntry, error) {
	entries, err := p.Waiting(queueID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Waiting возвращает ожидающие записи очереди по порядку обслуживания.
// При совпадении created_at порядок добивается по id — то есть по порядку
// вставки.
func (p *PositionCalculator) Waiting(queueID uint) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := p.db.Where("queue_id = ? AND status = ?", queueID, models.StatusWaiting).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
