package queue

import (
	"errors"

	"equeue/internal/models"

	"gorm.io/gorm"
)

// QueueInfo — то, что ядру нужно знать об очереди: тип и администраторы.
type QueueInfo struct {
	ID       uint
	Type     models.QueueType
	AdminIDs []uint
}

// InfoProvider отдаёт сведения об очереди. Вынесен в интерфейс, чтобы
// проверку администраторства можно было подменить, не трогая машину статусов.
type InfoProvider interface {
	// GetQueue возвращает ErrQueueNotFound, если очереди нет.
	GetQueue(queueID uint) (*QueueInfo, error)
	IsAdmin(userID, queueID uint) (bool, error)
}

// GormInfoProvider — реализация поверх таблиц queues и queue_admins.
type GormInfoProvider struct {
	db *gorm.DB
}

func NewGormInfoProvider(db *gorm.DB) *GormInfoProvider {
	return &GormInfoProvider{db: db}
}

func (p *GormInfoProvider) GetQueue(queueID uint) (*QueueInfo, error) {
	var q models.Queue
	if err := p.db.First(&q, queueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}

	var admins []models.QueueAdmin
	if err := p.db.Where("queue_id = ?", queueID).Find(&admins).Error; err != nil {
		return nil, err
	}

	info := &QueueInfo{ID: q.ID, Type: q.Type}
	for _, a := range admins {
		info.AdminIDs = append(info.AdminIDs, a.UserID)
	}
	return info, nil
}

func (p *GormInfoProvider) IsAdmin(userID, queueID uint) (bool, error) {
	var count int64
	err := p.db.Model(&models.QueueAdmin{}).
		Where("queue_id = ? AND user_id = ?", queueID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
