package tasks

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"equeue/internal/models"
	"equeue/internal/queue"
	"equeue/internal/ws"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var ctx = context.Background()

// Notifier находит записи, которым пора напомнить о приёме, и рассылает
// событие reminder_due подписчикам очереди. Саму доставку напоминаний
// выполняет внешняя система, подписанная на события хаба.
type Notifier struct {
	db        *gorm.DB
	redis     *redis.Client
	hub       *ws.Hub
	positions *queue.PositionCalculator
}

func NewNotifier(db *gorm.DB, redisClient *redis.Client, hub *ws.Hub) *Notifier {
	return &Notifier{
		db:        db,
		redis:     redisClient,
		hub:       hub,
		positions: queue.NewPositionCalculator(db),
	}
}

// NotifyUpcomingAppointments ищет ожидающие записи организационных очередей,
// до назначенного времени которых осталось не больше notification_minutes.
func (n *Notifier) NotifyUpcomingAppointments() {
	now := time.Now()

	var entries []models.QueueEntry
	err := n.db.
		Where("status = ? AND entry_time_org IS NOT NULL AND notification_minutes IS NOT NULL", models.StatusWaiting).
		Find(&entries).Error
	if err != nil {
		log.Println("Ошибка поиска записей для напоминаний:", err)
		return
	}

	for _, e := range entries {
		due := e.EntryTimeOrg.Add(-time.Duration(*e.NotificationMinutes) * time.Minute)
		if now.Before(due) {
			continue
		}
		if !n.markNotified(fmt.Sprintf("notify:org:%d", e.ID)) {
			continue
		}
		n.hub.BroadcastWSMessage(ws.WSMessage{
			EventType: "reminder_due",
			QueueID:   strconv.FormatUint(uint64(e.QueueID), 10),
			Data: map[string]interface{}{
				"entry_id":       e.ID,
				"user_id":        e.UserID,
				"entry_time_org": e.EntryTimeOrg.Format(time.RFC3339),
			},
		})
	}
}

// NotifyPositionThresholds ищет ожидающие записи живых очередей, впереди
// которых осталось не больше notification_position человек.
func (n *Notifier) NotifyPositionThresholds() {
	var entries []models.QueueEntry
	err := n.db.
		Where("status = ? AND notification_position IS NOT NULL", models.StatusWaiting).
		Find(&entries).Error
	if err != nil {
		log.Println("Ошибка поиска записей для напоминаний по позиции:", err)
		return
	}

	for _, e := range entries {
		pos, err := n.positions.Position(e.QueueID, e.ID)
		if err != nil {
			log.Println("Ошибка вычисления позиции записи", e.ID, ":", err)
			continue
		}
		if pos == 0 {
			continue
		}
		ahead := pos - 1
		if ahead > *e.NotificationPosition {
			continue
		}
		if !n.markNotified(fmt.Sprintf("notify:pos:%d", e.ID)) {
			continue
		}
		n.hub.BroadcastWSMessage(ws.WSMessage{
			EventType: "reminder_due",
			QueueID:   strconv.FormatUint(uint64(e.QueueID), 10),
			Data: map[string]interface{}{
				"entry_id": e.ID,
				"user_id":  e.UserID,
				"ahead":    ahead,
			},
		})
	}
}

// markNotified — SETNX-дедупликация, чтобы напоминание по записи ушло один раз.
func (n *Notifier) markNotified(key string) bool {
	if n.redis == nil {
		return true
	}
	ok, err := n.redis.SetNX(ctx, key, 1, 24*time.Hour).Result()
	if err != nil {
		log.Println("Ошибка записи в Redis:", err)
		return false
	}
	return ok
}

// InitScheduler инициализирует планировщик cron-задач напоминаний.
func InitScheduler(db *gorm.DB, redisClient *redis.Client, hub *ws.Hub) *cron.Cron {
	c := cron.New(cron.WithSeconds())
	n := NewNotifier(db, redisClient, hub)

	// Напоминания по времени приёма — каждую минуту.
	if _, err := c.AddFunc("0 * * * * *", n.NotifyUpcomingAppointments); err != nil {
		log.Println("Ошибка запуска cron-задачи NotifyUpcomingAppointments:", err)
	}
	// Напоминания по позиции в живой очереди — каждые 30 секунд.
	if _, err := c.AddFunc("*/30 * * * * *", n.NotifyPositionThresholds); err != nil {
		log.Println("Ошибка запуска cron-задачи NotifyPositionThresholds:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
