package queue

import (
	"errors"
	"fmt"
	"time"

	"equeue/internal/journal"
	"equeue/internal/models"

	"gorm.io/gorm"
)

// EntryService владеет жизненным циклом записи: валидацией создания, машиной
// статусов с матрицей прав и записью журнала. Только он решает, менять ли
// запись; хранилище и журнал пассивны.
type EntryService struct {
	db      *gorm.DB
	info    InfoProvider
	journal *journal.Service
	sink    EventSink

	// JournalSettingsChanges включает журналирование смены настроек
	// уведомлений. Выключено по умолчанию: изменение настроек не меняет
	// положение записи в очереди.
	JournalSettingsChanges bool
}

func NewEntryService(db *gorm.DB, info InfoProvider, jrnl *journal.Service, sink EventSink) *EntryService {
	return &EntryService{db: db, info: info, journal: jrnl, sink: sink}
}

// CreateEntryInput — данные для вступления в очередь.
type CreateEntryInput struct {
	QueueID uint
	// TargetUserID — кого записываем. Пустое значение или совпадение с
	// инициатором означает самостоятельное вступление; записать другого
	// пользователя может только администратор очереди.
	TargetUserID *uint
	// Date и Time обязательны для организационной очереди ("2006-01-02", "15:04").
	Date string
	Time string
	// NotificationMinutes допустим только для организационной очереди.
	NotificationMinutes *int
	// NotificationPosition допустим только для живой очереди.
	NotificationPosition *int
	Comment              *string
}

// Create валидирует вступление по типу очереди, сохраняет запись в статусе
// waiting и пишет строку журнала joined (admin_added, если администратор
// записал другого пользователя) в той же транзакции.
func (s *EntryService) Create(in CreateEntryInput, actingUserID uint) (*models.QueueEntry, error) {
	info, err := s.info.GetQueue(in.QueueID)
	if err != nil {
		return nil, err
	}

	targetID := actingUserID
	if in.TargetUserID != nil && *in.TargetUserID != actingUserID {
		isAdmin, err := s.info.IsAdmin(actingUserID, in.QueueID)
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			return nil, fmt.Errorf("%w: записывать других пользователей может только администратор", ErrForbidden)
		}
		targetID = *in.TargetUserID
	}

	now := time.Now()
	entry := &models.QueueEntry{
		QueueID:         in.QueueID,
		UserID:          targetID,
		Status:          models.StatusWaiting,
		StatusUpdatedAt: now,
	}

	switch info.Type {
	case models.QueueTypeOrganizational:
		if in.Date == "" || in.Time == "" {
			return nil, fmt.Errorf("%w: для организационной очереди обязательны дата и время", ErrInvalidRequest)
		}
		if in.NotificationPosition != nil {
			return nil, fmt.Errorf("%w: notification_position недопустим для организационной очереди", ErrInvalidRequest)
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.Time, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: неверный формат даты или времени", ErrInvalidRequest)
		}
		entry.EntryTimeOrg = &ts
		entry.NotificationMinutes = in.NotificationMinutes
	case models.QueueTypeSelfOrganized:
		if in.Date != "" || in.Time != "" || in.NotificationMinutes != nil {
			return nil, fmt.Errorf("%w: дата, время и notification_minutes недопустимы для живой очереди", ErrInvalidRequest)
		}
		entry.NotificationPosition = in.NotificationPosition
	default:
		return nil, fmt.Errorf("%w: неизвестный тип очереди %q", ErrInvalidRequest, info.Type)
	}

	action := models.ActionJoined
	if targetID != actingUserID {
		action = models.ActionAdminAdded
	}
	newStatus := models.StatusWaiting.Journal()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if info.Type == models.QueueTypeSelfOrganized {
			// Сквозной номер талона: MAX по всем записям очереди, включая
			// обслуженные и удалённые, поэтому номер монотонно растёт.
			var maxSeq int
			row := tx.Unscoped().Model(&models.QueueEntry{}).
				Where("queue_id = ?", in.QueueID).
				Select("COALESCE(MAX(sequential_number_self),0)").Row()
			if err := row.Scan(&maxSeq); err != nil {
				return err
			}
			seq := maxSeq + 1

			var waiting int64
			if err := tx.Model(&models.QueueEntry{}).
				Where("queue_id = ? AND status = ?", in.QueueID, models.StatusWaiting).
				Count(&waiting).Error; err != nil {
				return err
			}
			pos := int(waiting) + 1

			entry.SequentialNumberSelf = &seq
			entry.EntryPositionSelf = &pos
		}

		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		_, err := s.journal.Append(tx, journal.AppendInput{
			EntryID:           entry.ID,
			Action:            action,
			NewStatus:         &newStatus,
			InitiatedByUserID: actingUserID,
			Comment:           in.Comment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(Event{
		QueueID:           entry.QueueID,
		EntryID:           entry.ID,
		UserID:            entry.UserID,
		InitiatedByUserID: actingUserID,
		Action:            action,
		NewStatus:         &newStatus,
	})
	return entry, nil
}

// Get возвращает запись по идентификатору.
func (s *EntryService) Get(entryID uint) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := s.db.First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// UpdateStatus применяет переход машины статусов. Принятая мутация пишет
// ровно одну строку журнала; проигравший гонку параллельный вызов получает
// ErrConflict и может повторить запрос после перечитывания записи.
func (s *EntryService) UpdateStatus(entryID uint, newStatus models.EntryStatus, actingUserID uint, comment *string) (*models.QueueEntry, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: неизвестный статус %q", ErrInvalidRequest, newStatus)
	}

	var entry models.QueueEntry
	if err := s.db.First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	isOwner := entry.UserID == actingUserID
	isAdmin, err := s.info.IsAdmin(actingUserID, entry.QueueID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(entry.Status, newStatus, isOwner, isAdmin); err != nil {
		return nil, err
	}

	return s.commitStatusChange(&entry, newStatus, actingUserID, isOwner, comment)
}

// commitStatusChange выполняет CAS по статусу: UPDATE срабатывает, только если
// статус в базе всё ещё тот, что был прочитан. Ноль затронутых строк означает
// проигранную гонку.
func (s *EntryService) commitStatusChange(entry *models.QueueEntry, newStatus models.EntryStatus, actingUserID uint, isOwner bool, comment *string) (*models.QueueEntry, error) {
	prev := entry.Status
	now := time.Now()

	updates := map[string]interface{}{
		"status":            newStatus,
		"status_updated_at": now,
	}
	if newStatus == models.StatusServing {
		updates["actual_start_time"] = now
	}
	if prev == models.StatusServing {
		updates["actual_end_time"] = now
	}

	ps := prev.Journal()
	ns := newStatus.Journal()
	action := deriveAction(prev, newStatus, isOwner)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.QueueEntry{}).
			Where("id = ? AND status = ?", entry.ID, prev).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: статус записи изменён параллельным запросом", ErrConflict)
		}
		_, err := s.journal.Append(tx, journal.AppendInput{
			EntryID:           entry.ID,
			Action:            action,
			PrevStatus:        &ps,
			NewStatus:         &ns,
			InitiatedByUserID: actingUserID,
			Comment:           comment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	entry.Status = newStatus
	entry.StatusUpdatedAt = now
	if newStatus == models.StatusServing {
		entry.ActualStartTime = &now
	}
	if prev == models.StatusServing {
		entry.ActualEndTime = &now
	}

	s.emit(Event{
		QueueID:           entry.QueueID,
		EntryID:           entry.ID,
		UserID:            entry.UserID,
		InitiatedByUserID: actingUserID,
		Action:            action,
		PrevStatus:        &ps,
		NewStatus:         &ns,
	})
	return entry, nil
}

// checkTransition проверяет допустимость перехода и права инициатора.
// Повторная установка текущего статуса отклоняется, а не принимается молча.
func checkTransition(from, to models.EntryStatus, isOwner, isAdmin bool) error {
	if from == to {
		return fmt.Errorf("%w: запись уже в статусе %q", ErrInvalidRequest, to)
	}

	unsupported := fmt.Errorf("%w: переход %q -> %q не поддерживается", ErrInvalidRequest, from, to)
	adminOnly := fmt.Errorf("%w: переход %q -> %q доступен только администратору", ErrForbidden, from, to)

	switch from {
	case models.StatusWaiting:
		switch to {
		case models.StatusServing, models.StatusNoShow, models.StatusLate:
			if !isAdmin {
				return adminOnly
			}
		case models.StatusCanceled:
			if !isAdmin && !isOwner {
				return fmt.Errorf("%w: отменить запись может владелец или администратор", ErrForbidden)
			}
		default:
			return unsupported
		}
	case models.StatusServing:
		switch to {
		case models.StatusCompleted, models.StatusCanceled, models.StatusNoShow:
			if !isAdmin {
				return adminOnly
			}
		default:
			return unsupported
		}
	case models.StatusCompleted, models.StatusCanceled, models.StatusNoShow, models.StatusLate:
		// Из конечного статуса администратор может вернуть запись в
		// ожидание, исправляя ошибочную отметку. Остальное запрещено.
		if !isAdmin {
			return adminOnly
		}
		if to != models.StatusWaiting {
			return unsupported
		}
	default:
		return unsupported
	}
	return nil
}

// deriveAction выводит действие журнала из перехода статусов.
func deriveAction(from, to models.EntryStatus, isOwner bool) models.JournalAction {
	switch {
	case from == models.StatusWaiting && to == models.StatusServing:
		return models.ActionStartedServing
	case from == models.StatusServing && to == models.StatusCompleted:
		return models.ActionCompletedService
	case to == models.StatusCanceled:
		if isOwner {
			return models.ActionUserCanceled
		}
		return models.ActionAdminCanceled
	case to == models.StatusNoShow:
		return models.ActionNoShow
	case to == models.StatusLate:
		return models.ActionMarkedLate
	default:
		return models.ActionStatusChanged
	}
}

// Remove удаляет запись. Разрешено владельцу и администратору; в журнал
// уходит removed либо admin_removed, если удалял администратор чужую запись.
func (s *EntryService) Remove(entryID, actingUserID uint) error {
	var entry models.QueueEntry
	if err := s.db.First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		return err
	}

	isOwner := entry.UserID == actingUserID
	isAdmin, err := s.info.IsAdmin(actingUserID, entry.QueueID)
	if err != nil {
		return err
	}
	if !isOwner && !isAdmin {
		return fmt.Errorf("%w: удалить запись может владелец или администратор", ErrForbidden)
	}

	action := models.ActionRemoved
	if isAdmin && !isOwner {
		action = models.ActionAdminRemoved
	}
	return s.removeEntry(&entry, action, actingUserID)
}

// Leave — выход владельца из очереди: его запись в этой очереди удаляется,
// журнал получает действие left.
func (s *EntryService) Leave(queueID, actingUserID uint) error {
	if _, err := s.info.GetQueue(queueID); err != nil {
		return err
	}

	var entry models.QueueEntry
	err := s.db.Where("queue_id = ? AND user_id = ?", queueID, actingUserID).
		Order("created_at DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	return s.removeEntry(&entry, models.ActionLeft, actingUserID)
}

func (s *EntryService) removeEntry(entry *models.QueueEntry, action models.JournalAction, actingUserID uint) error {
	prev := entry.Status
	ps := prev.Journal()
	ns := models.JournalRemoved

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// CAS по статусу и на удалении: удаление поверх устаревшего статуса
		// не должно пройти молча.
		res := tx.Where("id = ? AND status = ?", entry.ID, prev).Delete(&models.QueueEntry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: запись изменена или удалена параллельным запросом", ErrConflict)
		}
		_, err := s.journal.Append(tx, journal.AppendInput{
			EntryID:           entry.ID,
			Action:            action,
			PrevStatus:        &ps,
			NewStatus:         &ns,
			InitiatedByUserID: actingUserID,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.emit(Event{
		QueueID:           entry.QueueID,
		EntryID:           entry.ID,
		UserID:            entry.UserID,
		InitiatedByUserID: actingUserID,
		Action:            action,
		PrevStatus:        &ps,
		NewStatus:         &ns,
	})
	return nil
}

// EntryPatch — изменяемые поля записи. Очередь и владелец неизменяемы:
// их присутствие в патче отклоняется.
type EntryPatch struct {
	QueueID              *uint
	UserID               *uint
	NotificationMinutes  *int
	NotificationPosition *int
}

// Update меняет настройки уведомлений записи. Права — как у Remove.
func (s *EntryService) Update(entryID uint, patch EntryPatch, actingUserID uint) (*models.QueueEntry, error) {
	if patch.QueueID != nil || patch.UserID != nil {
		return nil, fmt.Errorf("%w: очередь и владелец записи неизменяемы", ErrInvalidRequest)
	}

	var entry models.QueueEntry
	if err := s.db.First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	isOwner := entry.UserID == actingUserID
	isAdmin, err := s.info.IsAdmin(actingUserID, entry.QueueID)
	if err != nil {
		return nil, err
	}
	if !isOwner && !isAdmin {
		return nil, fmt.Errorf("%w: изменить запись может владелец или администратор", ErrForbidden)
	}

	info, err := s.info.GetQueue(entry.QueueID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	switch info.Type {
	case models.QueueTypeOrganizational:
		if patch.NotificationPosition != nil {
			return nil, fmt.Errorf("%w: notification_position недопустим для организационной очереди", ErrInvalidRequest)
		}
		if patch.NotificationMinutes != nil {
			updates["notification_minutes"] = *patch.NotificationMinutes
			entry.NotificationMinutes = patch.NotificationMinutes
		}
	case models.QueueTypeSelfOrganized:
		if patch.NotificationMinutes != nil {
			return nil, fmt.Errorf("%w: notification_minutes недопустим для живой очереди", ErrInvalidRequest)
		}
		if patch.NotificationPosition != nil {
			updates["notification_position"] = *patch.NotificationPosition
			entry.NotificationPosition = patch.NotificationPosition
		}
	}
	if len(updates) == 0 {
		return &entry, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.QueueEntry{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
			return err
		}
		if !s.JournalSettingsChanges {
			return nil
		}
		st := entry.Status.Journal()
		comment := "изменены настройки уведомлений"
		_, err := s.journal.Append(tx, journal.AppendInput{
			EntryID:           entry.ID,
			Action:            models.ActionStatusChanged,
			PrevStatus:        &st,
			NewStatus:         &st,
			InitiatedByUserID: actingUserID,
			Comment:           &comment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
