// codes.go — сервис QR-кодов: генерация пакетов, список для админ-панели,
// CSV-экспорт, статистика.
package service

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/audiomemo/internal/domain/model"
	"github.com/arturkryukov/audiomemo/internal/repository"
)

// Параметры генерации токенов.
const (
	// TokenLength — длина короткого токена.
	TokenLength = 8
	// tokenAlphabet — алфавит токена: строчные латинские буквы и цифры.
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	// MinBatchSize и MaxBatchSize — границы размера пакета генерации.
	MinBatchSize = 1
	MaxBatchSize = 500
	// DefaultBatchSize — размер пакета по умолчанию.
	DefaultBatchSize = 10

	// maxGenerateRetries — число повторов генерации пакета при коллизии токена.
	maxGenerateRetries = 5
)

// Prometheus-метрики генерации кодов.
var (
	codesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiomemo_codes_generated_total",
		Help: "Количество сгенерированных QR-кодов",
	})

	tokenCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiomemo_token_collisions_total",
		Help: "Количество коллизий токенов при генерации",
	})
)

// Stats — статистика для админ-панели.
type Stats struct {
	// TotalCodes — общее количество кодов.
	TotalCodes int
	// WithAudio — количество кодов с привязанным аудио.
	WithAudio int
}

// CodeService — бизнес-логика QR-кодов.
type CodeService struct {
	codeRepo repository.CodeRepository
	attRepo  repository.AttachmentRepository
	// baseURL — публичный origin для построения URL в CSV-экспорте
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewCodeService создаёт сервис QR-кодов.
func NewCodeService(
	codeRepo repository.CodeRepository,
	attRepo repository.AttachmentRepository,
	baseURL string,
	logger *slog.Logger,
) *CodeService {
	return &CodeService{
		codeRepo: codeRepo,
		attRepo:  attRepo,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger.With(slog.String("service", "codes")),
		now:      time.Now,
	}
}

// GenerateBatch генерирует пакет кодов со случайными токенами.
// count вне диапазона [MinBatchSize, MaxBatchSize] — ErrValidation,
// count <= 0 заменяется на DefaultBatchSize вызывающей стороной.
// Коллизия токена (уникальный индекс в базе) вызывает повтор всего
// пакета с новыми токенами, до maxGenerateRetries раз.
func (s *CodeService) GenerateBatch(ctx context.Context, count int) ([]*model.Code, error) {
	if count < MinBatchSize || count > MaxBatchSize {
		return nil, fmt.Errorf("%w: размер пакета %d вне диапазона %d-%d",
			ErrValidation, count, MinBatchSize, MaxBatchSize)
	}

	for attempt := 1; attempt <= maxGenerateRetries; attempt++ {
		codes := make([]*model.Code, count)
		for i := range codes {
			token, err := randomToken()
			if err != nil {
				return nil, fmt.Errorf("ошибка генерации токена: %w", err)
			}
			codes[i] = &model.Code{
				ID:    uuid.New().String(),
				Token: token,
			}
		}

		err := s.codeRepo.CreateBatch(ctx, codes)
		if err == nil {
			codesGenerated.Add(float64(count))
			s.logger.Info("Пакет кодов сгенерирован",
				slog.Int("count", count),
				slog.Int("attempt", attempt),
			)
			return codes, nil
		}
		if errors.Is(err, repository.ErrConflict) {
			// Коллизия токена — повторяем пакет целиком с новыми токенами
			tokenCollisions.Inc()
			s.logger.Warn("Коллизия токена при генерации, повтор пакета",
				slog.Int("attempt", attempt),
			)
			continue
		}
		return nil, fmt.Errorf("ошибка создания пакета кодов: %w", err)
	}

	return nil, ErrTokenSpace
}

// GetByToken возвращает код по токену. ErrNotFound если кода нет.
func (s *CodeService) GetByToken(ctx context.Context, token string) (*model.Code, error) {
	code, err := s.codeRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения кода %q: %w", token, err)
	}
	return code, nil
}

// List возвращает все коды с флагом наличия аудио, новые первыми.
func (s *CodeService) List(ctx context.Context) ([]*model.CodeWithAudio, error) {
	codes, err := s.codeRepo.ListWithAudioFlag(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка кодов: %w", err)
	}
	return codes, nil
}

// AttachmentForCode возвращает аудиозапись кода.
// ErrNotFound если аудио не привязано.
func (s *CodeService) AttachmentForCode(ctx context.Context, codeID string) (*model.Attachment, error) {
	att, err := s.attRepo.GetByCodeID(ctx, codeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения аудиозаписи: %w", err)
	}
	return att, nil
}

// Stats возвращает статистику для админ-панели.
func (s *CodeService) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.codeRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта кодов: %w", err)
	}
	withAudio, err := s.codeRepo.CountWithAudio(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта кодов с аудио: %w", err)
	}
	return &Stats{TotalCodes: total, WithAudio: withAudio}, nil
}

// PageURL возвращает публичный URL страницы кода: {base}/qr/{token}.
func (s *CodeService) PageURL(token string) string {
	return fmt.Sprintf("%s/qr/%s", s.baseURL, token)
}

// ExportCSV пишет все коды в CSV. Формат строк:
// заголовок QR_Code,URL,Created_At,Has_Audio, далее по строке на код
// с датой в формате YYYY-MM-DD и Yes/No в последней колонке.
func (s *CodeService) ExportCSV(ctx context.Context, w *csv.Writer) error {
	codes, err := s.codeRepo.ListWithAudioFlag(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения кодов для экспорта: %w", err)
	}

	if err := w.Write([]string{"QR_Code", "URL", "Created_At", "Has_Audio"}); err != nil {
		return fmt.Errorf("ошибка записи заголовка CSV: %w", err)
	}
	for _, c := range codes {
		hasAudio := "No"
		if c.HasAudio {
			hasAudio = "Yes"
		}
		row := []string{
			c.Token,
			s.PageURL(c.Token),
			c.CreatedAt.Format("2006-01-02"),
			hasAudio,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("ошибка записи строки CSV: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// ExportFilename возвращает имя файла экспорта: qr-codes-YYYY-MM-DD.csv.
func (s *CodeService) ExportFilename() string {
	return fmt.Sprintf("qr-codes-%s.csv", s.now().Format("2006-01-02"))
}

// randomToken генерирует криптографически случайный токен из tokenAlphabet.
func randomToken() (string, error) {
	alphabetLen := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, TokenLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}
