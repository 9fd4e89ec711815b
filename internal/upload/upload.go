// Пакет upload — валидация и сохранение аудиофайлов:
// проверка типа и размера, запись blob-а в object storage,
// вставка записи в базу данных.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arturkryukov/audiomemo/internal/domain/model"
	"github.com/arturkryukov/audiomemo/internal/repository"
	"github.com/arturkryukov/audiomemo/internal/storage"
)

// MaxFileSize — максимальный размер аудиофайла в байтах (10 МБ).
const MaxFileSize = 10 * 1024 * 1024

// allowedTypes — допустимые MIME-типы аудио.
var allowedTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-m4a": true,
	"audio/mp4":   true,
	"audio/webm":  true,
}

// extByType — расширение файла в storage-ключе по MIME-типу.
var extByType = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/wav":   "wav",
	"audio/x-m4a": "m4a",
	"audio/mp4":   "m4a",
	"audio/webm":  "webm",
}

// Ошибки валидации и сохранения.
var (
	// ErrUnsupportedType — MIME-тип файла не входит в список допустимых.
	ErrUnsupportedType = errors.New("неподдерживаемый тип файла")
	// ErrTooLarge — размер файла превышает MaxFileSize.
	ErrTooLarge = errors.New("файл слишком большой")
	// ErrStorageWrite — ошибка записи в object storage.
	ErrStorageWrite = errors.New("ошибка записи файла в хранилище")
	// ErrRecordCreate — файл записан, но запись в базе создать не удалось.
	ErrRecordCreate = errors.New("ошибка сохранения записи")
)

// Blob — аудиофайл, принятый на сохранение.
type Blob struct {
	// Data — содержимое файла.
	Data []byte
	// ContentType — MIME-тип файла.
	ContentType string
}

// Validate проверяет тип и размер файла. Чистая функция без side effects.
// Порядок проверок: сначала тип, затем размер.
func Validate(b *Blob) error {
	if !allowedTypes[b.ContentType] {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, b.ContentType)
	}
	if len(b.Data) > MaxFileSize {
		return fmt.Errorf("%w: %d байт при лимите %d", ErrTooLarge, len(b.Data), MaxFileSize)
	}
	return nil
}

// Service — сохранение аудио: object storage + база данных.
type Service struct {
	store  storage.ObjectStore
	repo   repository.AttachmentRepository
	logger *slog.Logger
	// now подменяется в тестах для детерминированных ключей
	now func() time.Time
}

// NewService создаёт сервис сохранения аудио.
func NewService(store storage.ObjectStore, repo repository.AttachmentRepository, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		repo:   repo,
		logger: logger.With(slog.String("component", "upload")),
		now:    time.Now,
	}
}

// StorageKey строит ключ объекта: "{codeID}-{unixMillis}.{ext}".
// Для неизвестного типа используется расширение mp3.
func StorageKey(codeID, contentType string, at time.Time) string {
	ext, ok := extByType[contentType]
	if !ok {
		ext = "mp3"
	}
	return fmt.Sprintf("%s-%d.%s", codeID, at.UnixMilli(), ext)
}

// Persist валидирует и сохраняет файл: сначала запись blob-а в object
// storage, затем вставка записи в базу. Шаги не объединены в транзакцию:
// при падении второго шага в хранилище остаётся объект-сирота, что
// допустимо (запись в базе на него не ссылается).
func (s *Service) Persist(ctx context.Context, codeID, uploaderEmail string, b *Blob) (*model.Attachment, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}

	key := StorageKey(codeID, b.ContentType, s.now())

	if err := s.store.WriteBlob(ctx, key, b.Data, b.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	att := &model.Attachment{
		ID:            uuid.New().String(),
		CodeID:        codeID,
		AudioURL:      s.store.PublicURLFor(key),
		UploaderEmail: uploaderEmail,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		// Blob уже в хранилище, откат не выполняется
		s.logger.Error("Файл записан, но запись в базе не создана",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrRecordCreate, err)
	}

	s.logger.Info("Аудио сохранено",
		slog.String("code_id", codeID),
		slog.String("key", key),
		slog.Int("size", len(b.Data)),
	)
	return att, nil
}
