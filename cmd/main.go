package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/moimhub/club-system/chat"
	"github.com/moimhub/club-system/config"
	"github.com/moimhub/club-system/db"
	"github.com/moimhub/club-system/handlers"
	"github.com/moimhub/club-system/repositories"
	api "github.com/moimhub/club-system/routes"
	"github.com/moimhub/club-system/services"
	"github.com/moimhub/club-system/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2)
	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Хаб live-ленты чата
	chatHub := chat.NewHub()

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	clubRepo := repositories.NewPostgresClubRepository(dbConn)
	membershipRepo := repositories.NewPostgresMembershipRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	groupMemberRepo := repositories.NewPostgresGroupMembershipRepository(dbConn)
	messageRepo := repositories.NewPostgresMessageRepository(dbConn)
	postRepo := repositories.NewPostgresPostRepository(dbConn)
	scheduleRepo := repositories.NewPostgresScheduleRepository(dbConn)
	ledgerRepo := repositories.NewPostgresLedgerRepository(dbConn)
	archiveRepo := repositories.NewPostgresArchiveRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo)
	membershipService := services.NewMembershipService(dbConn, membershipRepo, groupMemberRepo, clubRepo, logger)
	clubService := services.NewClubService(
		dbConn,
		clubRepo,
		membershipRepo,
		groupRepo,
		postRepo,
		scheduleRepo,
		membershipService,
		uploader,
	)
	groupService := services.NewGroupService(groupRepo, groupMemberRepo, membershipService)
	chatService := services.NewChatService(messageRepo, groupRepo, membershipService, chatHub)
	boardService := services.NewBoardService(postRepo, groupRepo, membershipService)
	scheduleService := services.NewScheduleService(scheduleRepo, membershipService)
	ledgerService := services.NewLedgerService(ledgerRepo, membershipService)
	archiveService := services.NewArchiveService(archiveRepo, membershipService, uploader, logger)
	logger.Info("services initialized")

	// Инициализация обработчиков HTTP
	h := api.Handlers{
		Auth:       handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Club:       handlers.NewClubHandler(clubService),
		Membership: handlers.NewMembershipHandler(membershipService),
		Group:      handlers.NewGroupHandler(groupService),
		Board:      handlers.NewBoardHandler(boardService),
		Schedule:   handlers.NewScheduleHandler(scheduleService),
		Ledger:     handlers.NewLedgerHandler(ledgerService),
		Archive:    handlers.NewArchiveHandler(archiveService),
		Chat:       handlers.NewChatHandler(chatService),
		WebSocket:  handlers.NewWebSocketHandler(chatHub, chatService, logger),
	}

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, h, cfg.JWTSecretKey, cfg.CORSAllowedOrigins)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
