// Пакет server — HTTP-сервер Audio Store с graceful shutdown.
// TLS опционален: без сертификата сервер работает по HTTP
// (TLS termination на API Gateway).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goaudiostore/internal/api/handlers"
	"github.com/bigkaa/goaudiostore/internal/api/middleware"
	"github.com/bigkaa/goaudiostore/internal/config"
)

// Server — HTTP-сервер Audio Store.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// Health и metrics endpoints публичны, всё под /api/v1/audio
// требует JWT-аутентификации.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	audioHandler *handlers.AudioHandler,
	healthHandler *handlers.HealthHandler,
	auth *middleware.JWTAuth,
) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные endpoints
	router.Get("/health/live", healthHandler.HealthLive)
	router.Get("/health/ready", healthHandler.HealthReady)
	router.Get("/metrics", healthHandler.GetMetrics)

	// Аутентифицированные endpoints
	router.Route("/api/v1/audio", func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Post("/", audioHandler.Upload)
		r.Get("/", audioHandler.List)
		r.Get("/{id}", audioHandler.Get)
		r.Patch("/{id}", audioHandler.Update)
		r.Delete("/{id}", audioHandler.Delete)
		r.Get("/{id}/download", audioHandler.Download)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
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
		var err error
		if s.cfg.TLSCert != "" {
			s.logger.Info("HTTPS-сервер запущен",
				slog.String("addr", s.httpServer.Addr),
				slog.String("cert", s.cfg.TLSCert),
			)
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			s.logger.Info("HTTP-сервер запущен",
				slog.String("addr", s.httpServer.Addr),
			)
			err = s.httpServer.ListenAndServe()
		}
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
