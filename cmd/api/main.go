package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/config"
	"twod-ledger-backend/internal/events"
	"twod-ledger-backend/internal/handlers"
	"twod-ledger-backend/internal/logger"
	"twod-ledger-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New("twod-ledger-api", cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		zlog.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicWagers, cfg.KafkaTopicSettlements)
		zlog.Info("publishing ledger events", zap.Strings("brokers", brokers))
	}
	defer publisher.Close()

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		zlog.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}
	jwtService, err := services.NewJWTService(secret, cfg.JWTTTL)
	if err != nil {
		zlog.Fatal("failed to create jwt service", zap.Error(err))
	}

	hub := handlers.NewWebSocketHub(zlog.Named("ws"))
	go hub.Run(ctx)

	engine := services.NewEngine(cfg, store, services.SystemClock{}, publisher, hub, zlog)

	admin, err := engine.Accounts.EnsureAdmin(ctx, cfg.AdminSeedBalance)
	if err != nil {
		zlog.Fatal("failed to seed admin account", zap.Error(err))
	}
	zlog.Info("admin account ready", zap.String("handle", admin.Handle), zap.Int64("balance", admin.Balance))

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Engine:          engine,
		JWT:             jwtService,
		Hub:             hub,
		AdminRateLimit:  cfg.AdminRateLimit,
		AdminRateWindow: cfg.AdminRateWindow,
		Log:             zlog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore returns the in-process store for ENV=memory and Redis otherwise.
func openStore(cfg *config.Config) (services.Store, error) {
	if cfg.Env == "memory" {
		return services.NewMemoryStore(), nil
	}
	return services.NewRedisStore(cfg)
}
