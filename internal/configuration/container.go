package configuration

import (
	"context"
	"fmt"
	"time"

	"workbridge/internal/cache"
	"workbridge/internal/db"
	"workbridge/internal/email"
	"workbridge/internal/handler"
	"workbridge/internal/hub"
	"workbridge/internal/middleware"
	"workbridge/internal/model"
	"workbridge/internal/repo"
	"workbridge/internal/service"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	ChatHandler         handler.ChatHandler
	ProposalHandler     handler.ProposalHandler
	NotificationHandler handler.NotificationHandler
	MonitorHandler      handler.MonitorHandler
	HealthHandler       handler.HealthHandler
	Auth                *middleware.AuthMiddleware
	Hub                 *hub.Hub
	Config              Config
	Logger              *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
	cooldown    cache.CooldownStore
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(ctx, con); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	redisOpts, err := redis.ParseURL(config.Redis.Url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cooldown := cache.NewCooldownStoreWithClient(redisClient, cache.DefaultEmailCooldown)

	conversationRepo := repo.NewConversationRepository(db.NewRepository[model.Conversation](con, db.ConversationsCollection), logger)
	messageRepo := repo.NewMessageRepository(db.NewRepository[model.Message](con, db.MessagesCollection), logger)
	proposalRepo := repo.NewProposalRepository(db.NewRepository[model.Proposal](con, db.ProposalsCollection), logger)
	taskRepo := repo.NewTaskRepository(db.NewRepository[model.Task](con, db.TasksCollection), logger)
	notificationRepo := repo.NewNotificationRepository(db.NewRepository[model.Notification](con, db.NotificationsCollection), logger)
	preferenceRepo := repo.NewPreferenceRepository(db.NewRepository[model.Preference](con, db.PreferencesCollection), logger)
	userRepo := repo.NewUserRepository(db.NewRepository[model.User](con, db.UsersCollection))

	emailService := email.NewService(email.Config{
		Host:     config.SMTP.Host,
		Port:     config.SMTP.Port,
		Username: config.SMTP.Username,
		Password: config.SMTP.Password,
		From:     config.SMTP.From,
		FromName: config.SMTP.FromName,
	})
	if !emailService.IsConfigured() {
		logger.Warn("SMTP is not configured, notification emails will fail")
	}

	notifier := service.NewNotificationService(notificationRepo, preferenceRepo, userRepo, emailService, cooldown, logger)

	h := hub.NewHub()

	chatService := service.NewChatService(conversationRepo, messageRepo, userRepo, h, notifier, logger)
	h.SetRecipientResolver(chatService.OtherParticipant)

	txn := db.NewTxnRunner(con)
	proposalService := service.NewProposalService(proposalRepo, taskRepo, txn, notifier, logger)

	box := service.NewNotificationBox(notificationRepo)

	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"mongo": func(ctx context.Context) error {
			return con.Client().Ping(ctx, nil)
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	return &Container{
		ChatHandler:         handler.NewChatHandler(chatService),
		ProposalHandler:     handler.NewProposalHandler(proposalService),
		NotificationHandler: handler.NewNotificationHandler(box),
		MonitorHandler:      handler.NewMonitorHandler(hub.NewMonitorService(h)),
		HealthHandler:       healthHandler,
		Auth:                middleware.NewAuthMiddleware(config.Server.JWTSecret),
		Hub:                 h,
		Config:              *config,
		Logger:              logger,
		mongoClient:         con,
		cooldown:            cooldown,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.cooldown != nil {
		_ = c.cooldown.Close()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
