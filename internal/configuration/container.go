package configuration

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/db"
	"github.com/yeshengliu/social-media/internal/handler"
	"github.com/yeshengliu/social-media/internal/hub"
	"github.com/yeshengliu/social-media/internal/model"
	"github.com/yeshengliu/social-media/internal/presence"
	"github.com/yeshengliu/social-media/internal/repo"
	"github.com/yeshengliu/social-media/internal/service"
)

type Container struct {
	ChatHandler handler.ChatHandler
	Hub         *hub.Hub
	Config      Config
	Logger      *zap.Logger

	// private - for cleanup
	mongoDatabase *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	var chats repo.ChatRepository
	var mongoDatabase *mongo.Database

	if config.ChatDatabase.Uri != "" {
		con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		mongoDatabase = con

		inboxRepo := db.NewRepository[model.Inbox](con, config.ChatDatabase.ChatsCollection)
		chats = repo.NewMongoChatRepository(inboxRepo, logger)
		logger.Info("chat store: mongodb",
			zap.String("database", config.ChatDatabase.Database),
			zap.String("collection", config.ChatDatabase.ChatsCollection),
		)
	} else {
		chats = repo.NewMemoryChatRepository()
		logger.Warn("chat store: in-memory (no mongo uri configured)")
	}

	registry := presence.NewRegistry(logger)
	h := hub.NewHub(registry, chats, config.Server.AllowedOrigins, logger)

	chatService := service.NewChatService(chats)
	chatHandler := handler.NewChatHandler(chatService)

	return &Container{
		ChatHandler:   chatHandler,
		Hub:           h,
		Config:        *config,
		Logger:        logger,
		mongoDatabase: mongoDatabase,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoDatabase != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoDatabase.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
