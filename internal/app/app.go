package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"eva-chat/backend/internal/agent"
	"eva-chat/backend/internal/api"
	"eva-chat/backend/internal/config"
	"eva-chat/backend/internal/database"
	"eva-chat/backend/internal/objectstore"
	"eva-chat/backend/internal/repository"
	"eva-chat/backend/internal/service"
)

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)

	logConfigSource()

	store, cleanup, err := newStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize message store", "backend", cfg.StoreBackend, "error", err)
		return 1
	}
	defer cleanup()

	objects, err := objectstore.New(cfg.ObjectDir, cfg.ObjectURLSecret, cfg.ObjectURLTTL)
	if err != nil {
		slog.Error("Failed to initialize object store", "dir", cfg.ObjectDir, "error", err)
		return 1
	}

	runtime := agent.NewHTTPRuntime(cfg.AgentURL, cfg.AgentAPIKey)

	conversationService := service.NewConversationService(store, runtime, objects, service.Options{
		MainModel:    cfg.MainModel,
		SupportModel: cfg.SupportModel,
		SystemPrompt: cfg.SystemPrompt,
		TurnTimeout:  cfg.TurnTimeout,
	})

	conversationHandler := api.NewConversationHandler(conversationService)
	objectHandler := api.NewObjectHandler(objects)
	router := api.NewRouter(conversationHandler, objectHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("Starting server", "port", cfg.AppPort, "store", cfg.StoreBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		return 1
	}

	return 0
}

// newStore builds the message store selected by STORE_BACKEND and returns a
// cleanup func that releases its underlying connection.
func newStore(cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		slog.Info("Successfully connected to Redis.", "addr", cfg.RedisAddr)
		cleanup := func() {
			if err := rdb.Close(); err != nil {
				slog.Error("Failed to close Redis connection", "error", err)
			}
		}
		return repository.NewRedisStore(rdb), cleanup, nil
	case "sqlite":
		db, err := database.InitDB(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)
		cleanup := func() {
			if err := db.Close(); err != nil {
				slog.Error("Failed to close database connection", "error", err)
			}
		}
		return repository.NewSQLiteStore(db), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
