// ingest.go — сервис приёма аудиофайлов.
// Конвейер одного файла: запись blob на диск → извлечение метаданных →
// запись в каталог. Файлы пакета обрабатываются последовательно,
// сбой одного не прерывает остальные. При сбое записи в каталог
// выполняется компенсирующее удаление blob'а.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goaudiostore/internal/api/errors"
	"github.com/bigkaa/goaudiostore/internal/api/middleware"
	"github.com/bigkaa/goaudiostore/internal/domain/model"
	"github.com/bigkaa/goaudiostore/internal/metadata"
	"github.com/bigkaa/goaudiostore/internal/repository"
	"github.com/bigkaa/goaudiostore/internal/storage/blobstore"
)

// IngestError — ошибка уровня пакета, транслируемая в HTTP-ответ.
type IngestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *IngestError) Error() string {
	return e.Message
}

// IngestFile — один файл входящего пакета загрузки.
type IngestFile struct {
	Reader           io.Reader
	OriginalFilename string
	MimeType         string
	Size             int64
}

// IngestService — оркестратор приёма пакетов аудиофайлов.
type IngestService struct {
	store     *blobstore.BlobStore
	extractor *metadata.Extractor
	repo      repository.AudioRepository
	validator *BatchValidator
	logger    *slog.Logger
}

// NewIngestService создаёт сервис приёма.
func NewIngestService(
	store *blobstore.BlobStore,
	extractor *metadata.Extractor,
	repo repository.AudioRepository,
	validator *BatchValidator,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		store:     store,
		extractor: extractor,
		repo:      repo,
		validator: validator,
		logger:    logger.With(slog.String("component", "ingest")),
	}
}

// Ingest принимает пакет файлов от владельца ownerID.
// Возвращает записи каталога для зафиксированных файлов.
// Семантика результата:
//   - лимиты пакета нарушены или все файлы недопустимого типа — ошибка 400,
//     ни один файл не записан;
//   - хотя бы один файл зафиксирован — успех (частичный успех допустим);
//   - все файлы упали при обработке — ошибка 500.
func (s *IngestService) Ingest(ctx context.Context, ownerID int64, files []IngestFile) ([]*model.AudioRecord, *IngestError) {
	if len(files) == 0 {
		return nil, &IngestError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message:    "Пакет загрузки пуст: нужен хотя бы один файл",
		}
	}

	if err := s.validator.ValidateBatch(files); err != nil {
		middleware.IngestBatchesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Отфильтровываем файлы недопустимого типа до записи на диск.
	// Пакет целиком из недопустимых типов отклоняется без побочных эффектов.
	accepted := make([]IngestFile, 0, len(files))
	skipped := 0
	for _, f := range files {
		if !s.validator.TypeAllowed(f.MimeType) {
			s.logger.Warn("Файл пропущен: недопустимый MIME-тип",
				slog.String("filename", f.OriginalFilename),
				slog.String("mime_type", f.MimeType),
			)
			middleware.IngestFilesTotal.WithLabelValues("rejected").Inc()
			skipped++
			continue
		}
		accepted = append(accepted, f)
	}
	if len(accepted) == 0 {
		middleware.IngestBatchesTotal.WithLabelValues("rejected").Inc()
		return nil, &IngestError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidFileType,
			Message:    "Все файлы пакета имеют недопустимый тип",
		}
	}

	committed := make([]*model.AudioRecord, 0, len(accepted))
	failed := 0
	for _, f := range accepted {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Приём прерван контекстом", slog.String("error", err.Error()))
			break
		}

		rec, err := s.ingestOne(ctx, ownerID, f)
		if err != nil {
			s.logger.Error("Файл не принят",
				slog.String("filename", f.OriginalFilename),
				slog.String("error", err.Error()),
			)
			middleware.IngestFilesTotal.WithLabelValues("failed").Inc()
			failed++
			continue
		}

		middleware.IngestFilesTotal.WithLabelValues("committed").Inc()
		committed = append(committed, rec)
	}

	if len(committed) == 0 {
		middleware.IngestBatchesTotal.WithLabelValues("failed").Inc()
		return nil, &IngestError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeIngestFailed,
			Message:    "Ни один файл пакета не был принят",
		}
	}

	result := "success"
	if failed > 0 || skipped > 0 {
		result = "partial"
	}
	middleware.IngestBatchesTotal.WithLabelValues(result).Inc()

	s.logger.Info("Пакет принят",
		slog.Int64("owner_id", ownerID),
		slog.Int("committed", len(committed)),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
	)
	return committed, nil
}

// ingestOne проводит один файл через конвейер: blob → метаданные → каталог.
// При сбое записи в каталог blob удаляется компенсирующим действием.
func (s *IngestService) ingestOne(ctx context.Context, ownerID int64, f IngestFile) (*model.AudioRecord, error) {
	saved, err := s.store.Save(f.Reader, f.OriginalFilename, ownerID)
	if err != nil {
		return nil, fmt.Errorf("запись blob: %w", err)
	}

	// Извлечение метаданных не блокирует приём: битый или нечитаемый
	// файл даёт пустые метаданные, файл остаётся принятым.
	meta := s.extractor.Extract(saved.FullPath)

	rec := &model.AudioRecord{
		OwnerID:          ownerID,
		Filename:         saved.Filename,
		StoragePath:      saved.FullPath,
		OriginalFilename: f.OriginalFilename,
		MimeType:         f.MimeType,
		SizeBytes:        uint64(saved.Size),
		Checksum:         saved.Checksum,
		DurationSeconds:  meta.DurationSeconds,
		Bitrate:          meta.Bitrate,
		SampleRate:       meta.SampleRate,
		Title:            meta.Title,
		Artist:           meta.Artist,
		Album:            meta.Album,
		Genre:            meta.Genre,
		Year:             meta.Year,
		Description:      meta.Comment,
		CreatedAt:        time.Now().UTC(),
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		// Компенсация: запись в каталог не удалась, blob не должен остаться.
		if delErr := s.store.Delete(saved.Filename); delErr != nil {
			s.logger.Error("Не удалось удалить blob после сбоя каталога",
				slog.String("filename", saved.Filename),
				slog.String("error", delErr.Error()),
			)
			middleware.OrphanBlobsTotal.Inc()
		}
		return nil, fmt.Errorf("запись в каталог: %w", err)
	}

	return created, nil
}
