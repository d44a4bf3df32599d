package main

import (
	"fmt"
	"log"
	"os"

	_ "equeue/docs"
	"equeue/internal/auth"
	"equeue/internal/handlers"
	"equeue/internal/journal"
	"equeue/internal/models"
	"equeue/internal/queue"
	"equeue/internal/storage"
	"equeue/internal/tasks"
	"equeue/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Электронная очередь
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.User{},
		&models.Queue{},
		&models.QueueAdmin{},
		&models.QueueEntry{},
		&models.JournalRecord{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	go ws.HubInstance.Run()

	jrnl := journal.NewService(storage.DB)
	provider := queue.NewGormInfoProvider(storage.DB)
	entries := queue.NewEntryService(storage.DB, provider, jrnl, ws.NewEntrySink(ws.HubInstance))
	positions := queue.NewPositionCalculator(storage.DB)
	h := handlers.New(entries, positions, jrnl)

	tasks.InitScheduler(storage.DB, storage.RedisClient, ws.HubInstance)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/register", handlers.Register)
		authGroup.POST("/refresh", handlers.RefreshToken)
	}

	api := r.Group("/api", auth.AuthMiddleware())
	{
		api.POST("/queues", handlers.CreateQueueHandler)
		api.GET("/queues/:id", h.GetQueueStatusHandler)
		api.POST("/queues/:id/admins", h.AddQueueAdminHandler)
		api.POST("/queues/:id/entries", h.CreateEntryHandler)
		api.POST("/queues/:id/leave", h.LeaveQueueHandler)
		api.GET("/queues/:id/next", h.GetNextEntryHandler)
		api.GET("/queues/:id/entries/:entryID/position", h.GetPositionHandler)

		api.GET("/entries/:id", h.GetEntryHandler)
		api.PATCH("/entries/:id/status", h.UpdateEntryStatusHandler)
		api.PATCH("/entries/:id", h.UpdateEntryHandler)
		api.DELETE("/entries/:id", h.RemoveEntryHandler)

		api.GET("/journal", h.ListJournalHandler)
	}

	r.GET("/api/queues/:id/ws", ws.QueueWebSocketHandler)

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
