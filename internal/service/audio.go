// audio.go — операции каталога над принятыми записями:
// список, чтение, частичное обновление, удаление.
// Доступ всегда ограничен владельцем: чужая запись неотличима
// от несуществующей (404, не 403). Администратор дополнительно
// может модерировать чужие записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/goaudiostore/internal/api/middleware"
	"github.com/bigkaa/goaudiostore/internal/domain/model"
	"github.com/bigkaa/goaudiostore/internal/domain/policy"
	"github.com/bigkaa/goaudiostore/internal/repository"
	"github.com/bigkaa/goaudiostore/internal/storage/blobstore"
)

// AudioService — операции чтения и изменения каталога.
type AudioService struct {
	store  *blobstore.BlobStore
	repo   repository.AudioRepository
	logger *slog.Logger
}

// NewAudioService создаёт сервис каталога.
func NewAudioService(store *blobstore.BlobStore, repo repository.AudioRepository, logger *slog.Logger) *AudioService {
	return &AudioService{
		store:  store,
		repo:   repo,
		logger: logger.With(slog.String("component", "audio")),
	}
}

// List возвращает все записи владельца, новые загрузки первыми.
func (s *AudioService) List(ctx context.Context, ownerID int64) ([]*model.AudioRecord, error) {
	records, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("list", "error").Inc()
		return nil, err
	}
	middleware.OperationsTotal.WithLabelValues("list", "success").Inc()
	return records, nil
}

// Get возвращает запись владельца и обновляет отметку последнего
// доступа. Ответ содержит состояние записи до обновления отметки.
// Сбой обновления отметки не считается ошибкой чтения.
func (s *AudioService) Get(ctx context.Context, ownerID, id int64) (*model.AudioRecord, error) {
	rec, err := s.repo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		result := "error"
		if errors.Is(err, repository.ErrNotFound) {
			result = "not_found"
		}
		middleware.OperationsTotal.WithLabelValues("get", result).Inc()
		return nil, err
	}

	if err := s.repo.TouchLastAccessed(ctx, id, time.Now().UTC()); err != nil {
		s.logger.Warn("Не удалось обновить last_accessed_at",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}

	middleware.OperationsTotal.WithLabelValues("get", "success").Inc()
	return rec, nil
}

// Update применяет частичное обновление описательных полей.
// Владелец редактирует полный описательный набор; администратор
// на чужой записи — только модерационные поля (description, tags),
// остальные поля запроса игнорируются.
func (s *AudioService) Update(ctx context.Context, ownerID int64, isAdmin bool, id int64, fields repository.UpdateFields) (*model.AudioRecord, error) {
	// Администратор видит чужие записи, обычный пользователь — только свои.
	var current *model.AudioRecord
	var err error
	if isAdmin {
		current, err = s.repo.GetByID(ctx, id)
	} else {
		current, err = s.repo.GetByIDForOwner(ctx, id, ownerID)
	}
	if err != nil {
		result := "error"
		if errors.Is(err, repository.ErrNotFound) {
			result = "not_found"
		}
		middleware.OperationsTotal.WithLabelValues("update", result).Inc()
		return nil, err
	}

	schema := policy.SelectUpdateSchema(current.OwnerID == ownerID, isAdmin)
	if schema == policy.SchemaNone {
		middleware.OperationsTotal.WithLabelValues("update", "not_found").Inc()
		return nil, repository.ErrNotFound
	}

	if !schema.AllowsDescriptive() {
		// Модерационная схема: описательные поля из запроса отбрасываются.
		fields = repository.UpdateFields{
			Description: fields.Description,
			Tags:        fields.Tags,
		}
		s.logger.Info("Модерационное обновление чужой записи",
			slog.Int64("id", id),
			slog.Int64("admin_id", ownerID),
			slog.Int64("owner_id", current.OwnerID),
		)
	}

	updated, err := s.repo.UpdateDescriptive(ctx, id, fields)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("update", "error").Inc()
		return nil, err
	}

	middleware.OperationsTotal.WithLabelValues("update", "success").Inc()
	return updated, nil
}

// Delete удаляет запись владельца: сначала blob с диска (best-effort),
// затем запись каталога. Отсутствующий или неудаляемый blob
// не блокирует удаление записи.
func (s *AudioService) Delete(ctx context.Context, ownerID, id int64) error {
	rec, err := s.repo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		result := "error"
		if errors.Is(err, repository.ErrNotFound) {
			result = "not_found"
		}
		middleware.OperationsTotal.WithLabelValues("delete", result).Inc()
		return err
	}

	if err := s.store.Delete(rec.Filename); err != nil {
		s.logger.Warn("Не удалось удалить blob, запись каталога будет удалена",
			slog.Int64("id", id),
			slog.String("filename", rec.Filename),
			slog.String("error", err.Error()),
		)
		middleware.OrphanBlobsTotal.Inc()
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("удаление записи каталога: %w", err)
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Запись удалена",
		slog.Int64("id", id),
		slog.Int64("owner_id", ownerID),
	)
	return nil
}
