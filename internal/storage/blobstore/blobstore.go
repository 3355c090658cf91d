// Пакет blobstore — операции с физическими аудиофайлами на диске.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету,
// чтение и удаление blob по сгенерированному имени.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore — управление физическими файлами на диске.
type BlobStore struct {
	// dataDir — корневая директория хранения файлов (AS_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения blob на диск.
type SaveResult struct {
	// Filename — сгенерированное имя файла в dataDir
	Filename string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — количество фактически записанных байт
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт новый BlobStore. Создаёт директорию данных,
// если она не существует (идемпотентно, безопасно при конкурентных вызовах).
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &BlobStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Формат имени файла: {owner}_{timestamp}_{name}_{uid}{ext}
// Возвращает имя, размер и checksum записанного файла.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При любой ошибке temp файл удаляется — частично записанный blob
// никогда не виден под финальным именем.
func (bs *BlobStore) Save(reader io.Reader, originalFilename string, ownerID int64) (*SaveResult, error) {
	storageName := generateStorageName(originalFilename, ownerID)
	fullPath := filepath.Join(bs.dataDir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Filename: storageName,
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает blob для чтения и возвращает *os.File.
// storagePath — имя файла в dataDir. Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Open(storagePath string) (*os.File, error) {
	fullPath := filepath.Join(bs.dataDir, storagePath)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}

	return f, nil
}

// FullPath возвращает абсолютный путь к blob на диске.
func (bs *BlobStore) FullPath(storagePath string) string {
	return filepath.Join(bs.dataDir, storagePath)
}

// Delete удаляет blob с диска.
// Возвращает nil, если файл уже не существует.
func (bs *BlobStore) Delete(storagePath string) error {
	fullPath := filepath.Join(bs.dataDir, storagePath)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование blob на диске.
func (bs *BlobStore) Exists(storagePath string) bool {
	fullPath := filepath.Join(bs.dataDir, storagePath)
	_, err := os.Stat(fullPath)
	return err == nil
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// generateStorageName генерирует имя файла для хранения на диске.
// Формат: {owner}_{timestamp}_{name}_{uid}{ext}
// Пример: 42_20260901150405.123456789_track01_a1b2c3d4.mp3
//
// Временная метка с наносекундным разрешением плюс короткий UUID
// делают коллизию имён структурно невозможной без глобального счётчика
// и межзапросных блокировок.
func generateStorageName(originalFilename string, ownerID int64) string {
	ext := filepath.Ext(originalFilename)
	name := strings.TrimSuffix(filepath.Base(originalFilename), ext)

	name = sanitize(name)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}

	ts := time.Now().UTC().Format("20060102150405.000000000")
	uid := uuid.New().String()[:8]

	return fmt.Sprintf("%d_%s_%s_%s%s", ownerID, ts, name, uid, ext)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "audio"
	}
	return result.String()
}
