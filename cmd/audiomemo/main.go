// Точка входа Audio Memory — сервис привязки аудио-воспоминаний к
// физическим предметам через QR-коды.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует object storage и отправку писем, создаёт сервисный слой
// и HTTP handlers, запускает фоновую очистку сессий записи и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/arturkryukov/audiomemo/internal/api/handlers"
	"github.com/arturkryukov/audiomemo/internal/api/middleware"
	"github.com/arturkryukov/audiomemo/internal/auth"
	"github.com/arturkryukov/audiomemo/internal/config"
	"github.com/arturkryukov/audiomemo/internal/database"
	"github.com/arturkryukov/audiomemo/internal/mailer"
	"github.com/arturkryukov/audiomemo/internal/recorder"
	"github.com/arturkryukov/audiomemo/internal/repository"
	"github.com/arturkryukov/audiomemo/internal/server"
	"github.com/arturkryukov/audiomemo/internal/service"
	"github.com/arturkryukov/audiomemo/internal/storage"
	"github.com/arturkryukov/audiomemo/internal/upload"
	"github.com/arturkryukov/audiomemo/internal/web"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Audio Memory запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Object storage (S3/MinIO)
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации object storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Object storage инициализирован",
		slog.String("endpoint", cfg.S3Endpoint),
		slog.String("bucket", cfg.S3Bucket),
	)

	// 6. Отправка писем (SMTP или dev-режим)
	mail, err := mailer.New(cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации отправки писем", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Repositories
	codeRepo := repository.NewCodeRepository(pool)
	attRepo := repository.NewAttachmentRepository(pool)

	// 8. Аутентификация: magic-link токены + cookie-сессии
	secureCookie := strings.HasPrefix(cfg.BaseURL, "https")

	issuer := auth.NewTokenIssuer(cfg.MagicLinkSecret, cfg.MagicLinkTTL)
	magicLinkSvc := auth.NewMagicLinkService(issuer, mail, cfg.BaseURL, logger)

	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, secureCookie)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("AM_SESSION_SECRET не задан, сессии не сохраняются между рестартами")
	}

	// 9. Services
	codesSvc := service.NewCodeService(codeRepo, attRepo, cfg.BaseURL, logger)
	uploadSvc := upload.NewService(store, attRepo, logger)

	// 10. Сессии записи с фоновой очисткой по TTL
	recorderMgr := recorder.NewManager(cfg.RecordingTTL, cfg.RecordingJanitorInterval, logger)
	recorderMgr.Start(ctx)

	// 11. Readiness checkers (PostgreSQL + object storage)
	pgChecker := database.NewReadinessChecker(pool)
	s3Checker := storage.NewReadinessChecker(store)
	healthHandler := handlers.NewHealthHandler(pgChecker, s3Checker)

	// 12. HTTP handlers
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		codesSvc,
		uploadSvc,
		recorderMgr,
		magicLinkSvc,
		issuer,
		sessionMgr,
		logger,
	)
	pageHandler := web.NewPageHandler(codesSvc, cfg, logger)
	sessionAuth := middleware.NewSessionAuth(sessionMgr, cfg, logger)

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, pageHandler, sessionAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	recorderMgr.Stop()

	logger.Info("Audio Memory остановлен")
}
