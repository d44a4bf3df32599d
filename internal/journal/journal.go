package journal

import (
	"time"

	"equeue/internal/models"

	"gorm.io/gorm"
)

// Service — журнал аудита: только добавление и выборка, без какой-либо
// бизнес-валидации. Все проверки выполняет вызывающая сторона до записи,
// поэтому журнал остаётся корректным и для read-only обходов в стороне от
// менеджера жизненного цикла.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AppendInput — данные одной строки журнала.
type AppendInput struct {
	EntryID           uint
	Action            models.JournalAction
	PrevStatus        *models.JournalStatus
	NewStatus         *models.JournalStatus
	InitiatedByUserID uint
	Comment           *string
}

// Append пишет одну строку журнала и возвращает её. Передаётся db текущей
// транзакции: строка журнала и мутация записи коммитятся вместе либо
// откатываются вместе.
func (s *Service) Append(db *gorm.DB, in AppendInput) (*models.JournalRecord, error) {
	if db == nil {
		db = s.db
	}
	rec := &models.JournalRecord{
		EntryID:           in.EntryID,
		Action:            in.Action,
		PrevStatus:        in.PrevStatus,
		NewStatus:         in.NewStatus,
		LogTime:           time.Now(),
		InitiatedByUserID: in.InitiatedByUserID,
		Comment:           in.Comment,
	}
	if err := db.Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Filter — условия выборки журнала. Пустой фильтр возвращает всю историю.
type Filter struct {
	EntryID           *uint
	InitiatedByUserID *uint
	Action            *models.JournalAction
}

// Query возвращает строки журнала, отсортированные по log_time по убыванию
// (свежие первыми). Добавочная сортировка по id делает порядок устойчивым
// при совпадении времени.
func (s *Service) Query(f Filter) ([]models.JournalRecord, error) {
	q := s.db.Model(&models.JournalRecord{})
	if f.EntryID != nil {
		q = q.Where("entry_id = ?", *f.EntryID)
	}
	if f.InitiatedByUserID != nil {
		q = q.Where("initiated_by_user_id = ?", *f.InitiatedByUserID)
	}
	if f.Action != nil {
		q = q.Where("action = ?", *f.Action)
	}

	var records []models.JournalRecord
	if err := q.Order("log_time DESC, id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
