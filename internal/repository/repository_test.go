package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arturkryukov/audiomemo/internal/config"
	"github.com/arturkryukov/audiomemo/internal/database"
	"github.com/arturkryukov/audiomemo/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool с автоматической очисткой.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("audiomemo_test"),
		postgres.WithUsername("audiomemo"),
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
	t.Setenv("AM_BASE_URL", "http://localhost:8080")
	t.Setenv("AM_DB_HOST", host)
	t.Setenv("AM_DB_PORT", port.Port())
	t.Setenv("AM_DB_NAME", "audiomemo_test")
	t.Setenv("AM_DB_USER", "audiomemo")
	t.Setenv("AM_DB_PASSWORD", "test-password")
	t.Setenv("AM_DB_SSL_MODE", "disable")
	t.Setenv("AM_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("AM_S3_ACCESS_KEY", "test")
	t.Setenv("AM_S3_SECRET_KEY", "test")
	t.Setenv("AM_MAGIC_LINK_SECRET", "test")
	t.Setenv("AM_ADMIN_EMAILS", "admin@example.com")

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

// newCode создаёт модель кода с заданным токеном.
func newCode(token string) *model.Code {
	return &model.Code{
		ID:    uuid.New().String(),
		Token: token,
	}
}

// --- Тесты CodeRepository ---

func TestCodeBatchCreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCodeRepository(pool)

	codes := []*model.Code{newCode("abc12345"), newCode("xyz00001"), newCode("xyz00002")}
	if err := repo.CreateBatch(ctx, codes); err != nil {
		t.Fatalf("CreateBatch() ошибка: %v", err)
	}
	for _, c := range codes {
		if c.CreatedAt.IsZero() {
			t.Errorf("CreatedAt не установлен для токена %q", c.Token)
		}
	}

	got, err := repo.GetByToken(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetByToken() ошибка: %v", err)
	}
	if got.ID != codes[0].ID {
		t.Errorf("GetByToken().ID = %q, ожидается %q", got.ID, codes[0].ID)
	}

	if _, err := repo.GetByToken(ctx, "nope0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByToken(несуществующий) = %v, ожидается ErrNotFound", err)
	}
}

func TestCodeBatchCreate_TokenCollision(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCodeRepository(pool)

	if err := repo.CreateBatch(ctx, []*model.Code{newCode("dup00000")}); err != nil {
		t.Fatalf("CreateBatch() ошибка: %v", err)
	}

	err := repo.CreateBatch(ctx, []*model.Code{newCode("dup00000")})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("CreateBatch(дубликат) = %v, ожидается ErrConflict", err)
	}
}

func TestCodeBatchCreate_ConflictRollsBackBatch(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCodeRepository(pool)

	if err := repo.CreateBatch(ctx, []*model.Code{newCode("dup11111")}); err != nil {
		t.Fatalf("CreateBatch() ошибка: %v", err)
	}

	// Пакет с коллизией в середине: валидные коды до и после дубликата
	batch := []*model.Code{newCode("new11111"), newCode("dup11111"), newCode("new22222")}
	if err := repo.CreateBatch(ctx, batch); !errors.Is(err, ErrConflict) {
		t.Fatalf("CreateBatch(пакет с дубликатом) = %v, ожидается ErrConflict", err)
	}

	// Пакет откатился целиком: валидные коды из него не вставлены
	if _, err := repo.GetByToken(ctx, "new11111"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByToken(new11111) = %v, ожидается ErrNotFound после отката", err)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if total != 1 {
		t.Errorf("Count() = %d, ожидается 1 (только код до пакета)", total)
	}
}

func TestCodeListWithAudioFlag(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	codeRepo := NewCodeRepository(pool)
	attRepo := NewAttachmentRepository(pool)

	first := newCode("list0001")
	second := newCode("list0002")
	if err := codeRepo.CreateBatch(ctx, []*model.Code{first}); err != nil {
		t.Fatalf("CreateBatch() ошибка: %v", err)
	}
	// Гарантируем различимый created_at для проверки сортировки
	time.Sleep(10 * time.Millisecond)
	if err := codeRepo.CreateBatch(ctx, []*model.Code{second}); err != nil {
		t.Fatalf("CreateBatch() ошибка: %v", err)
	}

	att := &model.Attachment{
		ID:            uuid.New().String(),
		CodeID:        first.ID,
		AudioURL:      "http://minio:9000/audio-files/" + first.ID + "-1.mp3",
		UploaderEmail: "visitor@example.com",
	}
	if err := attRepo.Create(ctx, att); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	list, err := codeRepo.ListWithAudioFlag(ctx)
	if err != nil {
		t.Fatalf("ListWithAudioFlag() ошибка: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListWithAudioFlag(): %d записей, ожидается 2", len(list))
	}
	// Сортировка created_at DESC: новый код первым
	if list[0].Token != "list0002" {
		t.Errorf("list[0].Token = %q, ожидается list0002 (DESC)", list[0].Token)
	}
	if list[0].HasAudio {
		t.Error("list[0].HasAudio = true, аудио не привязано")
	}
	if !list[1].HasAudio {
		t.Error("list[1].HasAudio = false, аудио привязано")
	}

	total, err := codeRepo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if total != 2 {
		t.Errorf("Count() = %d, ожидается 2", total)
	}
	withAudio, err := codeRepo.CountWithAudio(ctx)
	if err != nil {
		t.Fatalf("CountWithAudio() ошибка: %v", err)
	}
	if withAudio != 1 {
		t.Errorf("CountWithAudio() = %d, ожидается 1", withAudio)
	}
}

// --- Тесты AttachmentRepository ---

func TestAttachmentCreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	codeRepo := NewCodeRepository(pool)
	attRepo := NewAttachmentRepository(pool)

	code := newCode("att00001")
	if err := codeRepo.CreateBatch(ctx, []*model.Code{code}); err != nil {
		t.Fatalf("CreateBatch() ошибка: %v", err)
	}

	if _, err := attRepo.GetByCodeID(ctx, code.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByCodeID(без аудио) = %v, ожидается ErrNotFound", err)
	}

	att := &model.Attachment{
		ID:            uuid.New().String(),
		CodeID:        code.ID,
		AudioURL:      "http://minio:9000/audio-files/" + code.ID + "-1.webm",
		UploaderEmail: "visitor@example.com",
	}
	if err := attRepo.Create(ctx, att); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if att.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	got, err := attRepo.GetByCodeID(ctx, code.ID)
	if err != nil {
		t.Fatalf("GetByCodeID() ошибка: %v", err)
	}
	if got.AudioURL != att.AudioURL {
		t.Errorf("AudioURL = %q, ожидается %q", got.AudioURL, att.AudioURL)
	}
	if got.UploaderEmail != "visitor@example.com" {
		t.Errorf("UploaderEmail = %q, ожидается visitor@example.com", got.UploaderEmail)
	}
}
