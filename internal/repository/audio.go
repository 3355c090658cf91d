package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goaudiostore/internal/domain/model"
)

// audioColumns — список столбцов таблицы audio_files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов. size_bytes читается как text,
// чтобы не терять точность беззнакового 64-битного значения.
const audioColumns = `id, owner_id, filename, storage_path, original_filename, mime_type,
	size_bytes::text, checksum, duration_seconds, bitrate, sample_rate,
	title, artist, album, genre, year, description, tags,
	created_at, uploaded_at, last_accessed_at`

// UpdateFields — частичное обновление описательных полей.
// Все поля — указатели, nil = поле не изменяется.
type UpdateFields struct {
	Title       *string
	Artist      *string
	Album       *string
	Genre       *string
	Year        *int
	Description *string
	Tags        *[]string
}

// Empty сообщает, что ни одно поле не задано.
func (f UpdateFields) Empty() bool {
	return f.Title == nil && f.Artist == nil && f.Album == nil &&
		f.Genre == nil && f.Year == nil && f.Description == nil && f.Tags == nil
}

// AudioRepository — интерфейс доступа к каталогу audio_files.
type AudioRepository interface {
	// Create вставляет одну запись каталога и возвращает её
	// с назначенным id и uploaded_at.
	Create(ctx context.Context, rec *model.AudioRecord) (*model.AudioRecord, error)
	// ListByOwner возвращает все записи владельца, новые загрузки первыми.
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.AudioRecord, error)
	// GetByIDForOwner возвращает запись по id в пределах владельца
	// или ErrNotFound (в том числе для чужих записей).
	GetByIDForOwner(ctx context.Context, id, ownerID int64) (*model.AudioRecord, error)
	// GetByID возвращает запись по id без owner-предиката
	// (административный путь модерации).
	GetByID(ctx context.Context, id int64) (*model.AudioRecord, error)
	// TouchLastAccessed обновляет отметку последнего чтения.
	TouchLastAccessed(ctx context.Context, id int64, ts time.Time) error
	// UpdateDescriptive применяет частичное обновление описательных полей.
	UpdateDescriptive(ctx context.Context, id int64, fields UpdateFields) (*model.AudioRecord, error)
	// Delete удаляет запись каталога.
	Delete(ctx context.Context, id int64) error
}

// audioRepo — реализация AudioRepository через pgx.
type audioRepo struct {
	db DBTX
}

// NewAudioRepository создаёт репозиторий каталога аудиофайлов.
func NewAudioRepository(db DBTX) AudioRepository {
	return &audioRepo{db: db}
}

// rowScanner — общий интерфейс pgx.Row и pgx.Rows для scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord читает одну строку audio_files в доменную модель.
func scanRecord(row rowScanner) (*model.AudioRecord, error) {
	rec := &model.AudioRecord{}
	var sizeText string

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Filename, &rec.StoragePath, &rec.OriginalFilename, &rec.MimeType,
		&sizeText, &rec.Checksum, &rec.DurationSeconds, &rec.Bitrate, &rec.SampleRate,
		&rec.Title, &rec.Artist, &rec.Album, &rec.Genre, &rec.Year, &rec.Description, &rec.Tags,
		&rec.CreatedAt, &rec.UploadedAt, &rec.LastAccessedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.SizeBytes, err = strconv.ParseUint(sizeText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректное значение size_bytes %q: %w", sizeText, err)
	}
	return rec, nil
}

// Create вставляет запись каталога. size_bytes передаётся текстом
// с приведением к NUMERIC — без прохода через знаковый int64.
func (r *audioRepo) Create(ctx context.Context, rec *model.AudioRecord) (*model.AudioRecord, error) {
	query := fmt.Sprintf(`INSERT INTO audio_files (
		owner_id, filename, storage_path, original_filename, mime_type,
		size_bytes, checksum, duration_seconds, bitrate, sample_rate,
		title, artist, album, genre, year, description, tags, created_at
	) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18)
	RETURNING %s`, audioColumns)

	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	created, err := scanRecord(r.db.QueryRow(ctx, query,
		rec.OwnerID, rec.Filename, rec.StoragePath, rec.OriginalFilename, rec.MimeType,
		strconv.FormatUint(rec.SizeBytes, 10), rec.Checksum,
		rec.DurationSeconds, rec.Bitrate, rec.SampleRate,
		rec.Title, rec.Artist, rec.Album, rec.Genre, rec.Year, rec.Description, tags,
		rec.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки записи каталога: %w", err)
	}
	return created, nil
}

// ListByOwner возвращает записи владельца, отсортированные по uploaded_at DESC.
func (r *audioRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*model.AudioRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM audio_files WHERE owner_id = $1 ORDER BY uploaded_at DESC, id DESC`, audioColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса списка файлов: %w", err)
	}
	defer rows.Close()

	result := []*model.AudioRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// GetByIDForOwner возвращает запись по id и владельцу или ErrNotFound.
// Чужая запись неотличима от несуществующей.
func (r *audioRepo) GetByIDForOwner(ctx context.Context, id, ownerID int64) (*model.AudioRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM audio_files WHERE id = $1 AND owner_id = $2`, audioColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

// GetByID возвращает запись по id без owner-предиката.
func (r *audioRepo) GetByID(ctx context.Context, id int64) (*model.AudioRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM audio_files WHERE id = $1`, audioColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

// TouchLastAccessed обновляет last_accessed_at.
func (r *audioRepo) TouchLastAccessed(ctx context.Context, id int64, ts time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE audio_files SET last_accessed_at = $2 WHERE id = $1`, id, ts)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_accessed_at: %w", err)
	}
	return nil
}

// UpdateDescriptive применяет частичное обновление: только заданные
// (не-nil) поля попадают в SET, остальные не изменяются.
func (r *audioRepo) UpdateDescriptive(ctx context.Context, id int64, fields UpdateFields) (*model.AudioRecord, error) {
	if fields.Empty() {
		return r.GetByID(ctx, id)
	}

	set := make([]string, 0, 7)
	args := make([]any, 0, 8)
	n := 1
	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, n))
		args = append(args, value)
		n++
	}

	if fields.Title != nil {
		add("title", *fields.Title)
	}
	if fields.Artist != nil {
		add("artist", *fields.Artist)
	}
	if fields.Album != nil {
		add("album", *fields.Album)
	}
	if fields.Genre != nil {
		add("genre", *fields.Genre)
	}
	if fields.Year != nil {
		add("year", *fields.Year)
	}
	if fields.Description != nil {
		add("description", *fields.Description)
	}
	if fields.Tags != nil {
		add("tags", *fields.Tags)
	}

	query := fmt.Sprintf(`UPDATE audio_files SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), n, audioColumns)
	args = append(args, id)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления записи: %w", err)
	}
	return rec, nil
}

// Delete удаляет запись каталога.
func (r *audioRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM audio_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
