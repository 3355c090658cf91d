// download.go — отдача содержимого аудиофайла клиенту.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goaudiostore/internal/api/errors"
	"github.com/bigkaa/goaudiostore/internal/api/middleware"
	"github.com/bigkaa/goaudiostore/internal/repository"
	"github.com/bigkaa/goaudiostore/internal/storage/blobstore"
)

// DownloadService — сервис скачивания аудиофайлов.
type DownloadService struct {
	store  *blobstore.BlobStore
	repo   repository.AudioRepository
	logger *slog.Logger
}

// NewDownloadService создаёт сервис скачивания.
func NewDownloadService(store *blobstore.BlobStore, repo repository.AudioRepository, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		store:  store,
		repo:   repo,
		logger: logger.With(slog.String("component", "download")),
	}
}

// DownloadError — ошибка скачивания с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Serve отдаёт аудиофайл клиенту через http.ServeContent.
// Поддерживает Range requests (206 Partial Content) и ETag (If-None-Match).
// Доступ ограничен владельцем, как и остальные операции каталога.
// Скачивание считается доступом и обновляет отметку last_accessed_at.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, ownerID, id int64) *DownloadError {
	ctx := r.Context()

	rec, err := s.repo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
			return &DownloadError{
				StatusCode: http.StatusNotFound,
				Code:       apierrors.CodeNotFound,
				Message:    fmt.Sprintf("Файл %d не найден", id),
			}
		}
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка каталога",
		}
	}

	file, err := s.store.Open(rec.Filename)
	if err != nil {
		s.logger.Error("Файл не найден на диске",
			slog.Int64("id", id),
			slog.String("filename", rec.Filename),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
		return &DownloadError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Файл %d не найден на диске", id),
		}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}

	if err := s.repo.TouchLastAccessed(ctx, id, time.Now().UTC()); err != nil {
		s.logger.Warn("Не удалось обновить last_accessed_at",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}

	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", rec.OriginalFilename))
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", rec.Checksum))
	w.Header().Set("Accept-Ranges", "bytes")

	// http.ServeContent автоматически обрабатывает:
	//   - Range requests (206 Partial Content)
	//   - If-None-Match (304 Not Modified через ETag)
	//   - If-Modified-Since
	//   - Content-Length
	http.ServeContent(w, r, rec.OriginalFilename, stat.ModTime(), file)

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Debug("Файл скачан",
		slog.Int64("id", id),
		slog.String("filename", rec.OriginalFilename),
	)

	return nil
}
