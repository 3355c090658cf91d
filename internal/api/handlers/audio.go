// audio.go — HTTP handlers операций над аудиофайлами.
// Upload, List, Get, Update, Delete, Download.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goaudiostore/internal/api/errors"
	"github.com/bigkaa/goaudiostore/internal/api/middleware"
	"github.com/bigkaa/goaudiostore/internal/domain/model"
	"github.com/bigkaa/goaudiostore/internal/repository"
	"github.com/bigkaa/goaudiostore/internal/service"
)

// uploadField — имя поля multipart-формы с аудиофайлами.
const uploadField = "audio"

// AudioHandler — обработчик endpoints /api/v1/audio.
type AudioHandler struct {
	ingestSvc   *service.IngestService
	audioSvc    *service.AudioService
	downloadSvc *service.DownloadService
	logger      *slog.Logger
}

// NewAudioHandler создаёт обработчик аудио-endpoints.
func NewAudioHandler(
	ingestSvc *service.IngestService,
	audioSvc *service.AudioService,
	downloadSvc *service.DownloadService,
	logger *slog.Logger,
) *AudioHandler {
	return &AudioHandler{
		ingestSvc:   ingestSvc,
		audioSvc:    audioSvc,
		downloadSvc: downloadSvc,
		logger:      logger.With(slog.String("component", "audio_handler")),
	}
}

// audioResponse — API-представление записи каталога.
// SizeBytes сериализуется строкой: значение может превышать
// диапазон, который безопасно представляют JSON-числа.
// Внутренние поля (имя на диске, путь) наружу не отдаются.
type audioResponse struct {
	ID               int64      `json:"id"`
	OwnerID          int64      `json:"owner_id"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	SizeBytes        string     `json:"size_bytes"`
	Checksum         string     `json:"checksum"`
	DurationSeconds  *int64     `json:"duration_seconds,omitempty"`
	Bitrate          *int64     `json:"bitrate,omitempty"`
	SampleRate       *int64     `json:"sample_rate,omitempty"`
	Title            *string    `json:"title,omitempty"`
	Artist           *string    `json:"artist,omitempty"`
	Album            *string    `json:"album,omitempty"`
	Genre            *string    `json:"genre,omitempty"`
	Year             *int       `json:"year,omitempty"`
	Description      *string    `json:"description,omitempty"`
	Tags             []string   `json:"tags"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
}

// uploadResponse — ответ на загрузку пакета.
type uploadResponse struct {
	Message string          `json:"message"`
	Items   []audioResponse `json:"items"`
}

// listResponse — ответ на запрос списка.
type listResponse struct {
	Items []audioResponse `json:"items"`
	Total int             `json:"total"`
}

// updateRequest — тело PATCH-запроса. nil = поле не изменяется.
type updateRequest struct {
	Title       *string   `json:"title"`
	Artist      *string   `json:"artist"`
	Album       *string   `json:"album"`
	Genre       *string   `json:"genre"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

func (r updateRequest) empty() bool {
	return r.Title == nil && r.Artist == nil && r.Album == nil &&
		r.Genre == nil && r.Year == nil && r.Description == nil && r.Tags == nil
}

// Upload обрабатывает POST /api/v1/audio.
// Multipart form, поле audio — один или несколько файлов.
// Частичный успех допустим: 201 возвращается, если принят хотя бы один файл.
func (h *AudioHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Запрос не аутентифицирован")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32 MB buffer
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File[uploadField]) == 0 {
		apierrors.ValidationError(w, fmt.Sprintf("Поле %q обязательно: нужен хотя бы один файл", uploadField))
		return
	}
	headers := r.MultipartForm.File[uploadField]

	files := make([]service.IngestFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Не удалось открыть файл %q", fh.Filename))
			return
		}
		defer f.Close()

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		files = append(files, service.IngestFile{
			Reader:           f,
			OriginalFilename: fh.Filename,
			MimeType:         contentType,
			Size:             fh.Size,
		})
	}

	committed, ingErr := h.ingestSvc.Ingest(r.Context(), ownerID, files)
	if ingErr != nil {
		apierrors.WriteError(w, ingErr.StatusCode, ingErr.Code, ingErr.Message)
		return
	}

	items := make([]audioResponse, 0, len(committed))
	for _, rec := range committed {
		items = append(items, domainToAPI(rec))
	}

	message := fmt.Sprintf("Принято файлов: %d из %d", len(committed), len(headers))
	writeJSON(w, http.StatusCreated, uploadResponse{
		Message: message,
		Items:   items,
	})
}

// List обрабатывает GET /api/v1/audio.
// Возвращает все файлы владельца, новые загрузки первыми.
func (h *AudioHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Запрос не аутентифицирован")
		return
	}

	records, err := h.audioSvc.List(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов",
			slog.Int64("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка файлов")
		return
	}

	items := make([]audioResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, domainToAPI(rec))
	}

	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
}

// Get обрабатывает GET /api/v1/audio/{id}.
func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Запрос не аутентифицирован")
		return
	}
	id, err := parseID(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return
	}

	rec, err := h.audioSvc.Get(r.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, fmt.Sprintf("Файл %d не найден", id))
			return
		}
		h.logger.Error("Ошибка получения файла",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении файла")
		return
	}

	writeJSON(w, http.StatusOK, domainToAPI(rec))
}

// Update обрабатывает PATCH /api/v1/audio/{id}.
// Частичное обновление описательных полей; нужно хотя бы одно поле.
func (h *AudioHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Запрос не аутентифицирован")
		return
	}
	id, err := parseID(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}
	if req.empty() {
		apierrors.ValidationError(w, "Необходимо указать хотя бы одно поле для обновления")
		return
	}

	isAdmin := middleware.IsAdminFromContext(r.Context())
	updated, err := h.audioSvc.Update(r.Context(), ownerID, isAdmin, id, repository.UpdateFields{
		Title:       req.Title,
		Artist:      req.Artist,
		Album:       req.Album,
		Genre:       req.Genre,
		Year:        req.Year,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, fmt.Sprintf("Файл %d не найден", id))
			return
		}
		h.logger.Error("Ошибка обновления файла",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при обновлении файла")
		return
	}

	writeJSON(w, http.StatusOK, domainToAPI(updated))
}

// Delete обрабатывает DELETE /api/v1/audio/{id}.
func (h *AudioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Запрос не аутентифицирован")
		return
	}
	id, err := parseID(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return
	}

	if err := h.audioSvc.Delete(r.Context(), ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, fmt.Sprintf("Файл %d не найден", id))
			return
		}
		h.logger.Error("Ошибка удаления файла",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при удалении файла")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Download обрабатывает GET /api/v1/audio/{id}/download.
// Поддерживает Range requests (206) и ETag (If-None-Match → 304).
func (h *AudioHandler) Download(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Запрос не аутентифицирован")
		return
	}
	id, err := parseID(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return
	}

	if dlErr := h.downloadSvc.Serve(w, r, ownerID, id); dlErr != nil {
		apierrors.WriteError(w, dlErr.StatusCode, dlErr.Code, dlErr.Message)
	}
}

// parseID извлекает числовой id из URL.
func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// domainToAPI преобразует доменную модель в API-формат.
// Исключает внутренние поля (имя на диске, путь хранения).
func domainToAPI(m *model.AudioRecord) audioResponse {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}

	return audioResponse{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		OriginalFilename: m.OriginalFilename,
		MimeType:         m.MimeType,
		SizeBytes:        strconv.FormatUint(m.SizeBytes, 10),
		Checksum:         m.Checksum,
		DurationSeconds:  m.DurationSeconds,
		Bitrate:          m.Bitrate,
		SampleRate:       m.SampleRate,
		Title:            m.Title,
		Artist:           m.Artist,
		Album:            m.Album,
		Genre:            m.Genre,
		Year:             m.Year,
		Description:      m.Description,
		Tags:             tags,
		UploadedAt:       m.UploadedAt,
		LastAccessedAt:   m.LastAccessedAt,
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
