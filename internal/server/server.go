// Пакет server — HTTP-сервер Audio Memory с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/audiomemo/internal/api/handlers"
	"github.com/arturkryukov/audiomemo/internal/api/middleware"
	"github.com/arturkryukov/audiomemo/internal/config"
	"github.com/arturkryukov/audiomemo/internal/web"
	"github.com/arturkryukov/audiomemo/internal/web/static"
)

// Server — HTTP-сервер Audio Memory.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	pages *web.PageHandler,
	sessionAuth *middleware.SessionAuth,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(sessionAuth.WithUser)

	// Health и metrics — без аутентификации, проверяются Kubernetes напрямую
	router.Get("/health/live", api.Health.HealthLive)
	router.Get("/health/ready", api.Health.HealthReady)
	router.Get("/metrics", api.Health.GetMetrics)

	// Статические ресурсы
	router.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(static.FileSystem())))

	// HTML-страницы
	router.Get("/", pages.Landing)
	router.Get("/qr/{token}", pages.QRPage)
	router.Get("/admin", pages.AdminDashboard)
	router.Get("/admin/login", pages.AdminLogin)
	router.Post("/admin/generate", pages.AdminGenerate)

	// Passwordless-аутентификация
	router.Post("/auth/magic-link", api.Auth.RequestMagicLink)
	router.Get("/auth/callback", api.Auth.Callback)
	router.Post("/auth/logout", api.Auth.Logout)

	// Admin API — только для администраторов
	router.Route("/api/v1/codes", func(r chi.Router) {
		r.Use(sessionAuth.RequireAdmin)
		r.Post("/", api.Codes.Generate)
		r.Get("/", api.Codes.List)
		r.Get("/export", api.Codes.ExportCSV)
		r.Get("/{token}/qr.png", api.Codes.QRImage)
	})

	// API страницы кода: информация об аудио доступна всем,
	// загрузка и запись — только после входа
	router.Route("/api/v1/qr/{token}", func(r chi.Router) {
		r.Get("/audio", api.Audio.Get)

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth.RequireUser)
			r.Post("/audio", api.Audio.Upload)

			r.Route("/recording", func(r chi.Router) {
				r.Get("/", api.Recordings.State)
				r.Post("/start", api.Recordings.Start)
				r.Post("/chunk", api.Recordings.Chunk)
				r.Post("/stop", api.Recordings.Stop)
				r.Get("/preview", api.Recordings.Preview)
				r.Post("/discard", api.Recordings.Discard)
				r.Post("/save", api.Recordings.Save)
			})
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
