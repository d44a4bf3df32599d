package queue

import (
	"equeue/internal/models"
)

// Event — принятая мутация записи. Содержит те же данные, что и строка
// журнала, и уходит во внешний приёмник (WebSocket-хаб, метрики) вместо
// консольного логирования из ядра.
type Event struct {
	QueueID           uint
	EntryID           uint
	UserID            uint // владелец записи
	InitiatedByUserID uint // кто вызвал мутацию; при действиях администратора не совпадает с владельцем
	Action            models.JournalAction
	PrevStatus        *models.JournalStatus
	NewStatus         *models.JournalStatus
}

// EventSink получает событие по каждой принятой мутации. Вызывается после
// коммита транзакции.
type EventSink interface {
	EntryEvent(ev Event)
}

func (s *EntryService) emit(ev Event) {
	if s.sink != nil {
		s.sink.EntryEvent(ev)
	}
}
