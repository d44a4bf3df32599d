package queue

import (
	"testing"
	"time"

	"equeue/internal/journal"
	"equeue/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sinkRecorder struct {
	events []Event
}

func (r *sinkRecorder) EntryEvent(ev Event) {
	r.events = append(r.events, ev)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Ошибка открытия тестовой базы")
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Queue{},
		&models.QueueAdmin{},
		&models.QueueEntry{},
		&models.JournalRecord{},
	), "Ошибка миграции тестовой базы")
	return db
}

type fixture struct {
	db      *gorm.DB
	svc     *EntryService
	journal *journal.Service
	sink    *sinkRecorder

	adminID uint
	userID  uint
	otherID uint
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)
	jrnl := journal.NewService(db)
	sink := &sinkRecorder{}
	svc := NewEntryService(db, NewGormInfoProvider(db), jrnl, sink)

	f := &fixture{db: db, svc: svc, journal: jrnl, sink: sink}
	f.adminID = f.createUser(t, "admin@example.com")
	f.userID = f.createUser(t, "user@example.com")
	f.otherID = f.createUser(t, "other@example.com")
	return f
}

func (f *fixture) createUser(t *testing.T, email string) uint {
	t.Helper()
	u := models.User{Name: "Иван", Surname: "Иванов", Email: email, PasswordHash: "hashed"}
	require.NoError(t, f.db.Create(&u).Error)
	return u.ID
}

func (f *fixture) createQueue(t *testing.T, qt models.QueueType) uint {
	t.Helper()
	q := models.Queue{Name: "Тестовая очередь", Type: qt, CreatorID: f.adminID}
	require.NoError(t, f.db.Create(&q).Error)
	require.NoError(t, f.db.Create(&models.QueueAdmin{QueueID: q.ID, UserID: f.adminID}).Error)
	return q.ID
}

func (f *fixture) journalFor(t *testing.T, entryID uint) []models.JournalRecord {
	t.Helper()
	records, err := f.journal.Query(journal.Filter{EntryID: &entryID})
	require.NoError(t, err)
	return records
}

func intPtr(v int) *int    { return &v }
func uintPtr(v uint) *uint { return &v }

func TestCreateOrganizational(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeOrganizational)

	entry, err := f.svc.Create(CreateEntryInput{
		QueueID:             queueID,
		Date:                "2025-01-10",
		Time:                "09:00",
		NotificationMinutes: intPtr(30),
	}, f.userID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusWaiting, entry.Status)
	require.NotNil(t, entry.EntryTimeOrg)
	assert.Equal(t, "2025-01-10 09:00", entry.EntryTimeOrg.Format("2006-01-02 15:04"))
	require.NotNil(t, entry.NotificationMinutes)
	assert.Equal(t, 30, *entry.NotificationMinutes)
	// Поля живой очереди должны остаться пустыми.
	assert.Nil(t, entry.EntryPositionSelf)
	assert.Nil(t, entry.SequentialNumberSelf)
	assert.Nil(t, entry.NotificationPosition)

	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionJoined, records[0].Action)
	assert.Nil(t, records[0].PrevStatus)
	require.NotNil(t, records[0].NewStatus)
	assert.Equal(t, models.JournalWaiting, *records[0].NewStatus)
	assert.Equal(t, f.userID, records[0].InitiatedByUserID)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, models.ActionJoined, f.sink.events[0].Action)
}

func TestCreateOrganizationalValidation(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeOrganizational)

	_, err := f.svc.Create(CreateEntryInput{QueueID: queueID, Date: "2025-01-10"}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest, "отсутствие времени должно отклоняться")

	_, err = f.svc.Create(CreateEntryInput{QueueID: queueID, Date: "2025-01-10", Time: "26:70"}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest, "некорректное время должно отклоняться")

	_, err = f.svc.Create(CreateEntryInput{
		QueueID:              queueID,
		Date:                 "2025-01-10",
		Time:                 "09:00",
		NotificationPosition: intPtr(3),
	}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest, "notification_position недопустим для организационной очереди")

	assert.Empty(t, f.sink.events, "отклонённые запросы не порождают событий")
}

func TestCreateSelfOrganized(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)

	first, err := f.svc.Create(CreateEntryInput{QueueID: queueID, NotificationPosition: intPtr(2)}, f.userID)
	require.NoError(t, err)
	second, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.otherID)
	require.NoError(t, err)

	require.NotNil(t, first.SequentialNumberSelf)
	require.NotNil(t, second.SequentialNumberSelf)
	assert.Equal(t, 1, *first.SequentialNumberSelf)
	assert.Equal(t, 2, *second.SequentialNumberSelf)
	require.NotNil(t, second.EntryPositionSelf)
	assert.Equal(t, 2, *second.EntryPositionSelf)
	// Поля организационной очереди должны остаться пустыми.
	assert.Nil(t, first.EntryTimeOrg)
	assert.Nil(t, first.NotificationMinutes)
}

func TestCreateSelfOrganizedValidation(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)

	_, err := f.svc.Create(CreateEntryInput{QueueID: queueID, Date: "2025-01-10"}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest, "дата недопустима для живой очереди")

	_, err = f.svc.Create(CreateEntryInput{QueueID: queueID, NotificationMinutes: intPtr(10)}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest, "notification_minutes недопустим для живой очереди")
}

func TestCreateQueueMissing(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(CreateEntryInput{QueueID: 999}, f.userID)
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestCreateForOtherUser(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)

	// Администратор записывает другого пользователя.
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID, TargetUserID: uintPtr(f.userID)}, f.adminID)
	require.NoError(t, err)
	assert.Equal(t, f.userID, entry.UserID)

	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionAdminAdded, records[0].Action)
	assert.Equal(t, f.adminID, records[0].InitiatedByUserID)

	// Обычный пользователь записать другого не может.
	_, err = f.svc.Create(CreateEntryInput{QueueID: queueID, TargetUserID: uintPtr(f.otherID)}, f.userID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOwnerCancel(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(entry.ID, models.StatusCanceled, f.userID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, updated.Status)

	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 2)
	assert.Equal(t, models.ActionUserCanceled, records[0].Action)
	require.NotNil(t, records[0].PrevStatus)
	require.NotNil(t, records[0].NewStatus)
	assert.Equal(t, models.JournalWaiting, *records[0].PrevStatus)
	assert.Equal(t, models.JournalCanceled, *records[0].NewStatus)
}

func TestAdminCancel(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(entry.ID, models.StatusCanceled, f.adminID, nil)
	require.NoError(t, err)

	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 2)
	assert.Equal(t, models.ActionAdminCanceled, records[0].Action)
}

func TestStrangerForbidden(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(entry.ID, models.StatusServing, f.otherID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateStatus(entry.ID, models.StatusCanceled, f.otherID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	// Отклонённые вызовы не пишут журнал.
	assert.Len(t, f.journalFor(t, entry.ID), 1)
}

func TestOwnerCannotAdvance(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	for _, target := range []models.EntryStatus{models.StatusServing, models.StatusNoShow, models.StatusLate} {
		_, err := f.svc.UpdateStatus(entry.ID, target, f.userID, nil)
		assert.ErrorIs(t, err, ErrForbidden, "переход waiting -> %s доступен только администратору", target)
	}
}

func TestServingFlow(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	serving, err := f.svc.UpdateStatus(entry.ID, models.StatusServing, f.adminID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, serving.Status)
	assert.NotNil(t, serving.ActualStartTime, "начало обслуживания фиксируется")
	assert.Nil(t, serving.ActualEndTime)

	done, err := f.svc.UpdateStatus(entry.ID, models.StatusCompleted, f.adminID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.NotNil(t, done.ActualEndTime, "окончание обслуживания фиксируется")

	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 3)
	assert.Equal(t, models.ActionCompletedService, records[0].Action)
	assert.Equal(t, models.ActionStartedServing, records[1].Action)
	assert.Equal(t, models.ActionJoined, records[2].Action)
}

func TestNoShowAndLate(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)

	e1, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)
	e2, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.otherID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(e1.ID, models.StatusNoShow, f.adminID, nil)
	require.NoError(t, err)
	records := f.journalFor(t, e1.ID)
	assert.Equal(t, models.ActionNoShow, records[0].Action)

	_, err = f.svc.UpdateStatus(e2.ID, models.StatusLate, f.adminID, nil)
	require.NoError(t, err)
	records = f.journalFor(t, e2.ID)
	assert.Equal(t, models.ActionMarkedLate, records[0].Action)
}

func TestUnsupportedTransition(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	// Завершить можно только из обслуживания.
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusCompleted, f.adminID, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// Повторная установка текущего статуса отклоняется, а не принимается молча.
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusWaiting, f.adminID, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.UpdateStatus(entry.ID, models.EntryStatus("unknown"), f.adminID, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTerminalCorrection(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusServing, f.adminID, nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusCompleted, f.adminID, nil)
	require.NoError(t, err)

	// Владелец конечный статус трогать не может.
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusWaiting, f.userID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	// Администратору из конечного статуса доступен только возврат в ожидание.
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusServing, f.adminID, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	restored, err := f.svc.UpdateStatus(entry.ID, models.StatusWaiting, f.adminID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, restored.Status)

	records := f.journalFor(t, entry.ID)
	assert.Equal(t, models.ActionStatusChanged, records[0].Action)
}

func TestConflictOnStaleStatus(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	created, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	// Два конкурирующих запроса прочитали запись в статусе waiting.
	var first, second models.QueueEntry
	require.NoError(t, f.db.First(&first, created.ID).Error)
	require.NoError(t, f.db.First(&second, created.ID).Error)

	_, err = f.svc.commitStatusChange(&first, models.StatusServing, f.adminID, false, nil)
	require.NoError(t, err, "первый запрос выигрывает гонку")

	// Второй запрос применяет переход поверх устаревшего статуса.
	_, err = f.svc.commitStatusChange(&second, models.StatusCanceled, f.adminID, false, nil)
	assert.ErrorIs(t, err, ErrConflict)

	// Проигравший не оставил ни записи журнала, ни события.
	records := f.journalFor(t, created.ID)
	require.Len(t, records, 2)
	assert.Equal(t, models.ActionStartedServing, records[0].Action)
	assert.Len(t, f.sink.events, 2)
}

func TestRemove(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(entry.ID, f.userID))

	_, err = f.svc.Get(entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	// Журнал переживает удаление записи.
	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 2)
	assert.Equal(t, models.ActionRemoved, records[0].Action)
	require.NotNil(t, records[0].PrevStatus)
	assert.Equal(t, models.JournalWaiting, *records[0].PrevStatus)
	require.NotNil(t, records[0].NewStatus)
	assert.Equal(t, models.JournalRemoved, *records[0].NewStatus)
}

func TestRemoveByAdmin(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(entry.ID, f.adminID))
	records := f.journalFor(t, entry.ID)
	assert.Equal(t, models.ActionAdminRemoved, records[0].Action)
}

func TestRemoveForbidden(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	err = f.svc.Remove(entry.ID, f.otherID)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, f.svc.Remove(999, f.userID), ErrEntryNotFound)
}

func TestLeave(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Leave(queueID, f.userID))

	_, err = f.svc.Get(entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	records := f.journalFor(t, entry.ID)
	assert.Equal(t, models.ActionLeft, records[0].Action)

	// Повторный выход: записи больше нет.
	assert.ErrorIs(t, f.svc.Leave(queueID, f.userID), ErrEntryNotFound)
	assert.ErrorIs(t, f.svc.Leave(999, f.userID), ErrQueueNotFound)
}

func TestUpdateNotificationSettings(t *testing.T) {
	f := setup(t)
	orgQueueID := f.createQueue(t, models.QueueTypeOrganizational)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: orgQueueID, Date: "2025-01-10", Time: "09:00"}, f.userID)
	require.NoError(t, err)

	updated, err := f.svc.Update(entry.ID, EntryPatch{NotificationMinutes: intPtr(15)}, f.userID)
	require.NoError(t, err)
	require.NotNil(t, updated.NotificationMinutes)
	assert.Equal(t, 15, *updated.NotificationMinutes)

	// Очередь и владелец записи неизменяемы.
	_, err = f.svc.Update(entry.ID, EntryPatch{QueueID: uintPtr(2)}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.Update(entry.ID, EntryPatch{UserID: uintPtr(2)}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// Поле чужого типа очереди отклоняется.
	_, err = f.svc.Update(entry.ID, EntryPatch{NotificationPosition: intPtr(3)}, f.userID)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Update(entry.ID, EntryPatch{NotificationMinutes: intPtr(5)}, f.otherID)
	assert.ErrorIs(t, err, ErrForbidden)

	// По умолчанию смена настроек журнал не пишет.
	assert.Len(t, f.journalFor(t, entry.ID), 1)
}

func TestUpdateJournalingEnabled(t *testing.T) {
	f := setup(t)
	f.svc.JournalSettingsChanges = true
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	_, err = f.svc.Update(entry.ID, EntryPatch{NotificationPosition: intPtr(3)}, f.userID)
	require.NoError(t, err)

	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 2)
	assert.Equal(t, models.ActionStatusChanged, records[0].Action)
	require.NotNil(t, records[0].PrevStatus)
	require.NotNil(t, records[0].NewStatus)
	assert.Equal(t, *records[0].PrevStatus, *records[0].NewStatus)
}

func TestJournalRoundTrip(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(entry.ID, models.StatusServing, f.adminID, nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusCompleted, f.adminID, nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(entry.ID, models.StatusWaiting, f.adminID, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Remove(entry.ID, f.adminID))

	// Пять принятых мутаций — ровно пять строк журнала, свежие первыми.
	records := f.journalFor(t, entry.ID)
	require.Len(t, records, 5)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i-1].LogTime.Before(records[i].LogTime),
			"журнал отсортирован по log_time по убыванию")
	}
}

func TestStatusJournalMapping(t *testing.T) {
	cases := map[models.EntryStatus]models.JournalStatus{
		models.StatusWaiting:   models.JournalWaiting,
		models.StatusServing:   models.JournalServing,
		models.StatusCompleted: models.JournalCompleted,
		models.StatusCanceled:  models.JournalCanceled,
		models.StatusNoShow:    models.JournalNoShow,
		models.StatusLate:      models.JournalLate,
	}
	for entryStatus, journalStatus := range cases {
		assert.Equal(t, journalStatus, entryStatus.Journal())
	}
}

func TestEventTimestamps(t *testing.T) {
	f := setup(t)
	queueID := f.createQueue(t, models.QueueTypeSelfOrganized)

	before := time.Now()
	entry, err := f.svc.Create(CreateEntryInput{QueueID: queueID}, f.userID)
	require.NoError(t, err)

	assert.False(t, entry.StatusUpdatedAt.Before(before))

	updated, err := f.svc.UpdateStatus(entry.ID, models.StatusCanceled, f.userID, nil)
	require.NoError(t, err)
	assert.False(t, updated.StatusUpdatedAt.Before(entry.StatusUpdatedAt),
		"смена статуса обновляет status_updated_at")
}
