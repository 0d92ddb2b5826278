package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chatsync/internal/auth"
	"chatsync/internal/blob"
	"chatsync/internal/config"
	"chatsync/internal/db"
	"chatsync/internal/handlers"
	"chatsync/internal/middleware"
	"chatsync/internal/observability"
	"chatsync/internal/rabbitmq"
	"chatsync/internal/repositories"
	"chatsync/internal/session"
	"chatsync/internal/telemetry"
	"chatsync/internal/ws"
)

const serviceName = "chatsync"

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit_log.chatsync", serviceName, cfg.Environment)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	statusRepo := repositories.NewStatusRepo(database)

	blobs := blob.NewFSStore(cfg.BlobDir, cfg.BlobBaseURL)

	sessions := session.NewManager(userRepo, conversationRepo, blobs)
	defer sessions.CloseAll()

	hub := ws.NewHub()

	chatHandler := handlers.NewChatHandler(sessions, conversationRepo, userRepo, audit)
	groupHandler := handlers.NewGroupHandler(groupRepo, conversationRepo, blobs, hub, audit)
	statusHandler := handlers.NewStatusHandler(statusRepo, blobs, audit)
	userHandler := handlers.NewUserHandler(userRepo)

	chatWS := ws.NewChatWebSocketHandler(hub, sessions, verifier, publisher)
	groupWS := ws.NewGroupWebSocketHandler(hub, groupRepo, conversationRepo, verifier, publisher)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id", "X-Device-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/files", cfg.BlobDir)

	authMiddleware := middleware.Auth(verifier)
	sendLimit := middleware.SendRateLimit(cfg.SendRatePerSec, cfg.SendBurst)

	router.GET("/users", authMiddleware, userHandler.ListUsers)
	router.GET("/users/:user_id", authMiddleware, userHandler.GetUser)

	router.GET("/chats/:peer_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/chats/:peer_id/messages", authMiddleware, sendLimit, chatHandler.SendMessage)
	router.DELETE("/chats/:peer_id/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)

	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.GET("/groups/:group_id/messages", authMiddleware, groupHandler.GetMessages)
	router.POST("/groups/:group_id/messages", authMiddleware, sendLimit, groupHandler.SendMessage)
	router.DELETE("/groups/:group_id/messages/:message_id", authMiddleware, groupHandler.DeleteMessage)

	router.POST("/statuses", authMiddleware, statusHandler.PostStatus)
	router.GET("/statuses", authMiddleware, statusHandler.ListStatuses)

	router.GET("/ws/chats/:peer_id", chatWS.Handle)
	router.GET("/ws/groups/:group_id", groupWS.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
