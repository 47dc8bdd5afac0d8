package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/tracing"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	ctx := context.Background()
	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("redis unreachable, presence degraded: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.messaging", serviceName, cfg.Environment)
	tokens := auth.NewTokenService(cfg.JWTSecret)

	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)
	tracker := presence.NewRedisTracker(redisClient, cfg.PresenceWindow)
	typing := presence.NewRedisTypingSignals(redisClient, cfg.TypingWindow)

	hub := ws.NewHub(publisher)

	messageHandler := handlers.NewMessageHandler(messageRepo, hub, audit)
	presenceHandler := handlers.NewPresenceHandler(userRepo, messageRepo, tracker, typing, cfg.PresenceWindow)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir, cfg.MaxUploadBytes, audit)
	conversationWS := ws.NewConversationWSHandler(hub, messageRepo, typing, tokens, publisher)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(serviceName))

	authMiddleware := middleware.AuthMiddleware(tokens)

	messages := router.Group("/messages", authMiddleware)
	messages.GET("/conversation/:user_id", messageHandler.GetConversation)
	messages.POST("/send", messageHandler.SendMessage)
	messages.PUT("/batch-read", messageHandler.MarkBatchRead)
	messages.PUT("/:id/read", messageHandler.MarkRead)
	messages.PUT("/:id", messageHandler.EditMessage)
	messages.DELETE("/:id", messageHandler.DeleteMessage)
	messages.POST("/:id/reaction", messageHandler.AddReaction)
	messages.DELETE("/:id/reaction", messageHandler.RemoveReaction)
	messages.POST("/typing/start", presenceHandler.StartTyping)
	messages.POST("/typing/stop", presenceHandler.StopTyping)
	messages.GET("/typing/status/:user_id", presenceHandler.TypingStatus)
	messages.GET("/online/users-list", presenceHandler.OnlineUsersList)
	messages.POST("/heartbeat", presenceHandler.Heartbeat)
	messages.POST("/file", uploadHandler.Upload)

	router.GET("/ws/messages", conversationWS.Handle)

	router.Static("/uploads", cfg.UploadDir)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
