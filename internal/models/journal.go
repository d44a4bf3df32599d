package models

import (
	"time"

	"gorm.io/gorm"
)

// JournalAction — доменное действие, породившее запись журнала.
type JournalAction string

const (
	ActionJoined           JournalAction = "joined"
	ActionLeft             JournalAction = "left"
	ActionRemoved          JournalAction = "removed"
	ActionAdminRemoved     JournalAction = "admin_removed"
	ActionStatusChanged    JournalAction = "status_changed"
	ActionStartedServing   JournalAction = "started_serving"
	ActionCompletedService JournalAction = "completed_service"
	ActionUserCanceled     JournalAction = "user_canceled"
	ActionAdminCanceled    JournalAction = "admin_canceled"
	ActionNoShow           JournalAction = "no_show"
	ActionMarkedLate       JournalAction = "marked_late"
	ActionAdminAdded       JournalAction = "admin_added"
)

// JournalStatus — словарь статусов журнала. Совпадает со статусами записи,
// но дополнительно содержит removed: живая запись такого статуса не имеет,
// а журнал должен зафиксировать удаление.
type JournalStatus string

const (
	JournalWaiting   JournalStatus = "waiting"
	JournalServing   JournalStatus = "serving"
	JournalCompleted JournalStatus = "completed"
	JournalCanceled  JournalStatus = "canceled"
	JournalNoShow    JournalStatus = "no_show"
	JournalLate      JournalStatus = "late"
	JournalRemoved   JournalStatus = "removed"
)

// Journal переводит статус записи в словарь журнала. Все варианты EntryStatus
// перечислены явно; removed в статус записи не отображается никогда.
func (s EntryStatus) Journal() JournalStatus {
	switch s {
	case StatusWaiting:
		return JournalWaiting
	case StatusServing:
		return JournalServing
	case StatusCompleted:
		return JournalCompleted
	case StatusCanceled:
		return JournalCanceled
	case StatusNoShow:
		return JournalNoShow
	case StatusLate:
		return JournalLate
	}
	return JournalStatus(s)
}

// JournalRecord — неизменяемая строка журнала аудита. Создаётся ровно один
// раз на принятую мутацию, никогда не обновляется и не удаляется.
type JournalRecord struct {
	gorm.Model
	// EntryID хранится без внешнего ключа: история записи живёт дольше самой записи.
	EntryID           uint           `gorm:"index;not null"`
	Action            JournalAction  `gorm:"index;not null"`
	PrevStatus        *JournalStatus
	NewStatus         *JournalStatus
	LogTime           time.Time      `gorm:"index;not null"`
	InitiatedByUserID uint           `gorm:"index;not null"`
	Comment           *string
}
