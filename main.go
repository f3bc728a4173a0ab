package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"learner-chat/internal/config"
	"learner-chat/internal/db"
	"learner-chat/internal/handlers"
	"learner-chat/internal/identity"
	"learner-chat/internal/middleware"
	"learner-chat/internal/observability"
	"learner-chat/internal/rabbitmq"
	"learner-chat/internal/repositories"
	"learner-chat/internal/service"
	"learner-chat/internal/telemetry"
)

const serviceName = "learner-chat"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, serviceName, cfg.Environment)
	events := telemetry.NewChatEventEmitter(publisher, serviceName, cfg.Environment)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable, roster cache and rate limiting disabled: %v", err)
			rdb = nil
		}
	}

	identityClient := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout)
	roster := identity.NewRosterCache(identityClient, rdb, cfg.Chat.RosterTTL)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	chatService := service.NewChatService(roomRepo, messageRepo, roster, events, cfg.Chat.MaxMessageLen, cfg.Chat.HistoryLimit)
	chatHandler := handlers.NewChatHandler(chatService, audit)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWT.Secret)
	rateLimit := middleware.PostRateLimiter(rdb, cfg.Chat.PostRateLimit, cfg.Chat.PostRateWindow)

	room := router.Group("/api/learner_chat/:course_id/:chat_type")
	room.GET("/messages", authMiddleware, chatHandler.GetMessages)
	room.POST("/messages", authMiddleware, rateLimit, chatHandler.PostMessage)
	room.DELETE("/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.Telemetry.DebugEndpoints)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
