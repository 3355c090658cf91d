// validate.go — валидация пакета загрузки: количество файлов,
// размер каждого файла, допустимые MIME-типы.
package service

import (
	"fmt"
	"strings"

	apierrors "github.com/bigkaa/goaudiostore/internal/api/errors"
)

// allowedMIMETypes — MIME-типы аудио, принимаемые сервисом.
var allowedMIMETypes = map[string]struct{}{
	"audio/mpeg":  {},
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/flac":  {},
	"audio/ogg":   {},
	"audio/aac":   {},
	"audio/mp4":   {},
	"audio/webm":  {},
}

// BatchValidator проверяет пакет загрузки против лимитов сервиса.
type BatchValidator struct {
	maxFiles    int
	maxFileSize int64
}

// NewBatchValidator создаёт валидатор с лимитами из конфигурации.
func NewBatchValidator(maxFiles int, maxFileSize int64) *BatchValidator {
	return &BatchValidator{
		maxFiles:    maxFiles,
		maxFileSize: maxFileSize,
	}
}

// ValidateBatch проверяет лимиты, действующие на весь пакет:
// количество файлов и размер каждого файла. Нарушение любого
// из них отклоняет пакет целиком, без частичной обработки.
// Файл ровно на границе лимита принимается.
func (v *BatchValidator) ValidateBatch(files []IngestFile) *IngestError {
	if len(files) > v.maxFiles {
		return &IngestError{
			StatusCode: 400,
			Code:       apierrors.CodeTooManyFiles,
			Message:    fmt.Sprintf("Слишком много файлов: %d, лимит %d", len(files), v.maxFiles),
		}
	}

	for _, f := range files {
		if f.Size > v.maxFileSize {
			return &IngestError{
				StatusCode: 400,
				Code:       apierrors.CodeFileTooLarge,
				Message: fmt.Sprintf("Файл %q превышает лимит размера: %d байт, лимит %d",
					f.OriginalFilename, f.Size, v.maxFileSize),
			}
		}
	}

	return nil
}

// TypeAllowed проверяет MIME-тип файла по списку допустимых.
// Параметры после ";" (charset и т.п.) отбрасываются.
func (v *BatchValidator) TypeAllowed(mimeType string) bool {
	mt := mimeType
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	_, ok := allowedMIMETypes[mt]
	return ok
}

// MaxFileSize возвращает лимит размера одного файла в байтах.
func (v *BatchValidator) MaxFileSize() int64 {
	return v.maxFileSize
}

// MaxFiles возвращает лимит количества файлов в пакете.
func (v *BatchValidator) MaxFiles() int {
	return v.maxFiles
}
