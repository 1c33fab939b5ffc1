package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamhub-backend/internal/database"
	conversationHandler "teamhub-backend/internal/handler/http/conversation"
	messageHandler "teamhub-backend/internal/handler/http/message"
	presenceHandler "teamhub-backend/internal/handler/http/presence"
	"teamhub-backend/internal/middleware"
	"teamhub-backend/internal/repository/cassandra"
	"teamhub-backend/internal/repository/cockroach"
	redisRepo "teamhub-backend/internal/repository/redis"
	conversationService "teamhub-backend/internal/service/conversation"
	messageService "teamhub-backend/internal/service/message"
	"teamhub-backend/internal/ws"
	"teamhub-backend/pkg/env"
	"teamhub-backend/pkg/jwt"
	"teamhub-backend/pkg/logger"
	"teamhub-backend/pkg/metrics"
)

func main() {
	logger.InitDefault()
	defer logger.Sync()

	// 1. Token verifier
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}
	verifier := jwt.NewVerifier(jwtSecret, 15*time.Minute)

	ctx := context.Background()

	// 2. CockroachDB (conversations, participants)
	cockroachConfig := &database.CockroachConfig{
		Host:     env.GetString("COCKROACH_HOST", "localhost"),
		Port:     env.GetInt("COCKROACH_PORT", 26257),
		User:     env.GetString("COCKROACH_USER", "root"),
		Password: env.GetStringFromFile("COCKROACH_PASSWORD", ""),
		Database: env.GetString("COCKROACH_DATABASE", "teamhub"),
		SSLMode:  env.GetString("COCKROACH_SSL_MODE", "disable"),
	}
	cockroachDB, err := database.NewCockroachDB(ctx, cockroachConfig)
	if err != nil {
		log.Fatalf("Failed to connect to CockroachDB: %v", err)
	}
	defer cockroachDB.Close()
	logger.Info("connected to CockroachDB", zap.String("host", cockroachConfig.Host))

	// 3. Cassandra (message history)
	cassandraConfig := &database.CassandraConfig{
		Hosts:    env.GetStringSlice("CASSANDRA_HOSTS", []string{"localhost"}),
		Keyspace: env.GetString("CASSANDRA_KEYSPACE", "teamhub_ks"),
		Username: env.GetStringFromFile("CASSANDRA_USER", ""),
		Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
		Timeout:  10 * time.Second,
	}
	cassandraDB, err := database.NewCassandraDB(cassandraConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Cassandra: %v", err)
	}
	defer cassandraDB.Close()
	logger.Info("connected to Cassandra", zap.Strings("hosts", cassandraConfig.Hosts))

	// 4. Redis (presence mirror, directory cache, token revocation)
	redisConfig := &database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	}
	redisDB, err := database.NewRedisDB(redisConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisDB.Close()
	redisDB.StartHealthCheck(ctx, 10*time.Second)
	logger.Info("connected to Redis", zap.String("host", redisConfig.Host))

	// 5. Repositories
	conversationRepo := cockroach.NewConversationRepository(cockroachDB.Pool)
	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB.Client)
	directoryRepo := redisRepo.NewDirectoryRepository(redisDB.Client)
	tokenRepo := redisRepo.NewTokenRepository(redisDB.Client)

	// 6. Services
	msgService := messageService.NewService(messageRepo, conversationRepo, directoryRepo)
	convService := conversationService.NewService(
		conversationRepo,
		messageRepo,
		messageRepo,
		directoryRepo,
		directoryRepo,
	)

	// 7. WebSocket gateway
	m := metrics.NewMetrics("chat-service")
	registry := ws.NewConnectionRegistry()
	router := ws.NewRouter()
	gateway := ws.NewGateway(verifier, registry, router, conversationRepo, msgService, presenceRepo, m)

	// 8. HTTP layer
	if env.GetString("GIN_MODE", "") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.SecurityHeaders())
	engine.Use(middleware.NewPrometheusMiddleware(m).Handler())

	engine.GET("/health", middleware.HealthCheck("chat-service"))
	engine.GET("/metrics", middleware.MetricsHandler())
	engine.GET("/ws", gateway.ServeWS)

	v1 := engine.Group("/v1")
	v1.Use(middleware.Auth(verifier, middleware.NewRedisRevocationChecker(tokenRepo)))

	conversationHandler.NewHandler(convService, msgService, router, directoryRepo).RegisterRoutes(v1)
	messageHandler.NewHandler(msgService, router).RegisterRoutes(v1)
	presenceHandler.NewHandler(presenceRepo).RegisterRoutes(v1)

	// 9. Serve with graceful shutdown
	port := env.GetInt("PORT", 8083)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("chat service listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down chat service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
