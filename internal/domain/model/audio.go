// Пакет model — доменные модели Audio Store.
// AudioRecord — строка каталога, описывающая один загруженный аудиофайл:
// локатор в blob-хранилище + технические и описательные метаданные.
package model

import (
	"time"
)

// UserType — тип пользователя из JWT claim user_type.
type UserType string

const (
	// UserTypeUser — обычный пользователь
	UserTypeUser UserType = "USER"
	// UserTypeAdmin — администратор
	UserTypeAdmin UserType = "ADMIN"
)

// AudioRecord — одна запись каталога аудиофайлов.
//
// Идентичность (ID, OwnerID) и локатор хранилища (Filename, StoragePath,
// SizeBytes, Checksum) неизменяемы после создания. Технические метаданные
// записываются один раз при ингестии. Описательные метаданные редактируются
// операцией частичного обновления.
type AudioRecord struct {
	// ID — идентификатор записи, назначается каталогом (BIGSERIAL)
	ID int64

	// OwnerID — идентификатор владельца (sub из JWT), неизменяем
	OwnerID int64

	// Filename — сгенерированное имя файла в хранилище.
	// Формат: {owner}_{timestamp}_{name}_{uid}{ext}, уникально для всех записей.
	Filename string

	// StoragePath — полный путь файла в хранилище
	StoragePath string

	// OriginalFilename — имя файла, заявленное клиентом (недоверенное, только для отображения)
	OriginalFilename string

	// MimeType — MIME-тип, заявленный клиентом
	MimeType string

	// SizeBytes — точный размер blob в байтах.
	// uint64: каталог хранит значение как NUMERIC(20,0), без знакового усечения.
	SizeBytes uint64

	// Checksum — SHA-256 содержимого blob
	Checksum string

	// --- Технические метаданные (nil = извлечение не дало значения) ---

	// DurationSeconds — длительность в секундах, округлена до целого
	DurationSeconds *int64
	// Bitrate — битрейт в бит/с, округлён до целого
	Bitrate *int64
	// SampleRate — частота дискретизации в Гц, как в контейнере
	SampleRate *int64

	// --- Описательные метаданные (все опциональны, редактируемые) ---

	Title       *string
	Artist      *string
	Album       *string
	Genre       *string
	Year        *int
	Description *string
	Tags        []string

	// CreatedAt — момент извлечения метаданных и записи blob
	CreatedAt time.Time
	// UploadedAt — момент вставки записи в каталог
	UploadedAt time.Time
	// LastAccessedAt — момент последнего чтения записи по id
	LastAccessedAt *time.Time
}
