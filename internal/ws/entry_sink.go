package ws

import (
	"strconv"

	"equeue/internal/queue"
)

// EntrySink транслирует события ядра очереди подписчикам WebSocket. Это тот
// же поток данных, что уходит в журнал аудита.
type EntrySink struct {
	Hub *Hub
}

func NewEntrySink(hub *Hub) *EntrySink {
	return &EntrySink{Hub: hub}
}

func (s *EntrySink) EntryEvent(ev queue.Event) {
	data := map[string]interface{}{
		"entry_id":     ev.EntryID,
		"user_id":      ev.UserID,
		"initiated_by": ev.InitiatedByUserID,
	}
	if ev.PrevStatus != nil {
		data["prev_status"] = string(*ev.PrevStatus)
	}
	if ev.NewStatus != nil {
		data["new_status"] = string(*ev.NewStatus)
	}
	s.Hub.BroadcastWSMessage(WSMessage{
		EventType: string(ev.Action),
		QueueID:   strconv.FormatUint(uint64(ev.QueueID), 10),
		Data:      data,
	})
}
