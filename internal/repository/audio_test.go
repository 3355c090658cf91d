package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goaudiostore/internal/config"
	"github.com/bigkaa/goaudiostore/internal/database"
	"github.com/bigkaa/goaudiostore/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("audiostore_test"),
		postgres.WithUsername("audiostore"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("AS_DB_HOST", host)
	t.Setenv("AS_DB_PORT", port.Port())
	t.Setenv("AS_DB_NAME", "audiostore_test")
	t.Setenv("AS_DB_USER", "audiostore")
	t.Setenv("AS_DB_PASSWORD", "test-password")
	t.Setenv("AS_DB_SSLMODE", "disable")
	t.Setenv("AS_DATA_DIR", t.TempDir())
	t.Setenv("AS_JWKS_URL", "http://localhost:8080/jwks")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func testRecord(ownerID int64, filename string) *model.AudioRecord {
	return &model.AudioRecord{
		OwnerID:          ownerID,
		Filename:         filename,
		StoragePath:      "/data/" + filename,
		OriginalFilename: "song.mp3",
		MimeType:         "audio/mpeg",
		SizeBytes:        1048576,
		Checksum:         "sha256:deadbeef",
		DurationSeconds:  i64Ptr(180),
		Bitrate:          i64Ptr(192000),
		SampleRate:       i64Ptr(44100),
		Title:            strPtr("Тестовый трек"),
		Artist:           strPtr("Исполнитель"),
		Tags:             []string{"test", "mp3"},
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

// --- Тесты AudioRepository ---

func TestAudioCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAudioRepository(pool)

	// Create
	created, err := repo.Create(ctx, testRecord(42, "42_20250101_song_abc.mp3"))
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if created.ID == 0 {
		t.Error("ID не назначен после Create")
	}
	if created.UploadedAt.IsZero() {
		t.Error("UploadedAt не установлен")
	}
	if created.SizeBytes != 1048576 {
		t.Errorf("SizeBytes = %d, хотели 1048576", created.SizeBytes)
	}
	if created.LastAccessedAt != nil {
		t.Error("LastAccessedAt должен быть nil для новой записи")
	}

	// GetByIDForOwner
	got, err := repo.GetByIDForOwner(ctx, created.ID, 42)
	if err != nil {
		t.Fatalf("GetByIDForOwner() ошибка: %v", err)
	}
	if got.Title == nil || *got.Title != "Тестовый трек" {
		t.Errorf("Title = %v, хотели %q", got.Title, "Тестовый трек")
	}
	if len(got.Tags) != 2 {
		t.Errorf("Tags = %v, хотели 2 элемента", got.Tags)
	}

	// GetByIDForOwner чужим владельцем → ErrNotFound
	if _, err := repo.GetByIDForOwner(ctx, created.ID, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Чужой владелец: ожидали ErrNotFound, получили: %v", err)
	}

	// GetByID без owner-предиката
	if _, err := repo.GetByID(ctx, created.ID); err != nil {
		t.Errorf("GetByID() ошибка: %v", err)
	}

	// TouchLastAccessed
	ts := time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.TouchLastAccessed(ctx, created.ID, ts); err != nil {
		t.Fatalf("TouchLastAccessed() ошибка: %v", err)
	}
	touched, _ := repo.GetByID(ctx, created.ID)
	if touched.LastAccessedAt == nil || !touched.LastAccessedAt.Equal(ts) {
		t.Errorf("LastAccessedAt = %v, хотели %v", touched.LastAccessedAt, ts)
	}

	// Delete
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Повторный Delete: ожидали ErrNotFound, получили: %v", err)
	}
}

func TestAudioListByOwner(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAudioRepository(pool)

	// Три файла владельца 7, один — владельца 8
	for i, name := range []string{"7_a.mp3", "7_b.mp3", "7_c.mp3"} {
		rec := testRecord(7, name)
		rec.CreatedAt = rec.CreatedAt.Add(time.Duration(i) * time.Second)
		if _, err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create(%s) ошибка: %v", name, err)
		}
	}
	if _, err := repo.Create(ctx, testRecord(8, "8_x.mp3")); err != nil {
		t.Fatalf("Create чужого файла: %v", err)
	}

	list, err := repo.ListByOwner(ctx, 7)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListByOwner() вернул %d записей, хотели 3", len(list))
	}
	// Новые загрузки первыми
	for i := 1; i < len(list); i++ {
		if list[i].UploadedAt.After(list[i-1].UploadedAt) {
			t.Errorf("Нарушен порядок сортировки: [%d] %v после [%d] %v",
				i, list[i].UploadedAt, i-1, list[i-1].UploadedAt)
		}
	}

	empty, err := repo.ListByOwner(ctx, 999)
	if err != nil {
		t.Fatalf("ListByOwner(999) ошибка: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListByOwner(999) вернул %d записей, хотели 0", len(empty))
	}
}

func TestAudioUpdateDescriptive(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAudioRepository(pool)

	created, err := repo.Create(ctx, testRecord(5, "5_upd.mp3"))
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Частичное обновление: только title и tags
	newTags := []string{"jazz"}
	updated, err := repo.UpdateDescriptive(ctx, created.ID, UpdateFields{
		Title: strPtr("Новое название"),
		Tags:  &newTags,
	})
	if err != nil {
		t.Fatalf("UpdateDescriptive() ошибка: %v", err)
	}
	if updated.Title == nil || *updated.Title != "Новое название" {
		t.Errorf("Title = %v, хотели %q", updated.Title, "Новое название")
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "jazz" {
		t.Errorf("Tags = %v, хотели [jazz]", updated.Tags)
	}
	// Незатронутые поля сохраняются
	if updated.Artist == nil || *updated.Artist != "Исполнитель" {
		t.Errorf("Artist = %v, должен остаться %q", updated.Artist, "Исполнитель")
	}
	if updated.SizeBytes != created.SizeBytes {
		t.Errorf("SizeBytes = %d, хотели %d", updated.SizeBytes, created.SizeBytes)
	}

	// Пустой набор полей — запись без изменений
	same, err := repo.UpdateDescriptive(ctx, created.ID, UpdateFields{})
	if err != nil {
		t.Fatalf("UpdateDescriptive(пусто) ошибка: %v", err)
	}
	if same.Title == nil || *same.Title != "Новое название" {
		t.Errorf("После пустого обновления Title = %v", same.Title)
	}

	// Несуществующий id
	if _, err := repo.UpdateDescriptive(ctx, 1<<40, UpdateFields{Title: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Несуществующий id: ожидали ErrNotFound, получили: %v", err)
	}
}

// Размеры больше math.MaxInt64 должны переживать запись и чтение без потерь.
func TestAudioHugeSize(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAudioRepository(pool)

	rec := testRecord(3, "3_huge.flac")
	rec.SizeBytes = 1<<63 + 12345 // за пределами знакового int64

	created, err := repo.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if created.SizeBytes != rec.SizeBytes {
		t.Errorf("SizeBytes = %d, хотели %d", created.SizeBytes, rec.SizeBytes)
	}

	got, err := repo.GetByIDForOwner(ctx, created.ID, 3)
	if err != nil {
		t.Fatalf("GetByIDForOwner() ошибка: %v", err)
	}
	if got.SizeBytes != rec.SizeBytes {
		t.Errorf("После чтения SizeBytes = %d, хотели %d", got.SizeBytes, rec.SizeBytes)
	}
}
