package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/audiomemo/internal/domain/model"
	"github.com/arturkryukov/audiomemo/internal/repository"
)

// fakeCodeRepo — in-memory репозиторий кодов для unit-тестов.
type fakeCodeRepo struct {
	codes []*model.CodeWithAudio
	// conflictsLeft — столько первых вызовов CreateBatch вернут ErrConflict
	conflictsLeft int
	created       [][]*model.Code
}

func (f *fakeCodeRepo) CreateBatch(_ context.Context, codes []*model.Code) error {
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return repository.ErrConflict
	}
	for _, c := range codes {
		c.CreatedAt = time.Now()
	}
	f.created = append(f.created, codes)
	return nil
}

func (f *fakeCodeRepo) GetByToken(_ context.Context, token string) (*model.Code, error) {
	for _, c := range f.codes {
		if c.Token == token {
			return &c.Code, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCodeRepo) ListWithAudioFlag(context.Context) ([]*model.CodeWithAudio, error) {
	return f.codes, nil
}

func (f *fakeCodeRepo) Count(context.Context) (int, error) {
	return len(f.codes), nil
}

func (f *fakeCodeRepo) CountWithAudio(context.Context) (int, error) {
	var n int
	for _, c := range f.codes {
		if c.HasAudio {
			n++
		}
	}
	return n, nil
}

type fakeAttRepo struct {
	byCode map[string]*model.Attachment
}

func (f *fakeAttRepo) Create(_ context.Context, a *model.Attachment) error {
	f.byCode[a.CodeID] = a
	return nil
}

func (f *fakeAttRepo) GetByCodeID(_ context.Context, codeID string) (*model.Attachment, error) {
	a, ok := f.byCode[codeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(codeRepo *fakeCodeRepo) *CodeService {
	svc := NewCodeService(codeRepo, &fakeAttRepo{byCode: map[string]*model.Attachment{}},
		"http://localhost:8080", testLogger())
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- Генерация пакетов ---

func TestGenerateBatch(t *testing.T) {
	repo := &fakeCodeRepo{}
	svc := newTestService(repo)

	codes, err := svc.GenerateBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("GenerateBatch() ошибка: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("сгенерировано %d кодов, ожидается 10", len(codes))
	}

	seen := make(map[string]bool)
	for _, c := range codes {
		if len(c.Token) != TokenLength {
			t.Errorf("длина токена %q = %d, ожидается %d", c.Token, len(c.Token), TokenLength)
		}
		for _, r := range c.Token {
			if !strings.ContainsRune(tokenAlphabet, r) {
				t.Errorf("токен %q содержит символ вне алфавита: %q", c.Token, r)
			}
		}
		if seen[c.Token] {
			t.Errorf("дублирующийся токен в пакете: %q", c.Token)
		}
		seen[c.Token] = true
		if c.ID == "" {
			t.Error("код без идентификатора")
		}
	}
}

func TestGenerateBatch_Bounds(t *testing.T) {
	svc := newTestService(&fakeCodeRepo{})
	ctx := context.Background()

	for _, count := range []int{0, -1, MaxBatchSize + 1} {
		if _, err := svc.GenerateBatch(ctx, count); !errors.Is(err, ErrValidation) {
			t.Errorf("GenerateBatch(%d) = %v, ожидается ErrValidation", count, err)
		}
	}

	// Границы диапазона допустимы
	if _, err := svc.GenerateBatch(ctx, MinBatchSize); err != nil {
		t.Errorf("GenerateBatch(%d) ошибка: %v", MinBatchSize, err)
	}
	if _, err := svc.GenerateBatch(ctx, MaxBatchSize); err != nil {
		t.Errorf("GenerateBatch(%d) ошибка: %v", MaxBatchSize, err)
	}
}

func TestGenerateBatch_RetriesOnCollision(t *testing.T) {
	repo := &fakeCodeRepo{conflictsLeft: 2}
	svc := newTestService(repo)

	codes, err := svc.GenerateBatch(context.Background(), 5)
	if err != nil {
		t.Fatalf("GenerateBatch() ошибка: %v", err)
	}
	if len(codes) != 5 {
		t.Errorf("сгенерировано %d кодов, ожидается 5", len(codes))
	}
	// Две коллизии, успех с третьей попытки
	if len(repo.created) != 1 {
		t.Errorf("успешных вставок %d, ожидается 1", len(repo.created))
	}
}

func TestGenerateBatch_ExhaustsRetries(t *testing.T) {
	repo := &fakeCodeRepo{conflictsLeft: maxGenerateRetries}
	svc := newTestService(repo)

	if _, err := svc.GenerateBatch(context.Background(), 5); !errors.Is(err, ErrTokenSpace) {
		t.Errorf("GenerateBatch() = %v, ожидается ErrTokenSpace", err)
	}
}

// --- Получение кодов ---

func TestGetByToken(t *testing.T) {
	repo := &fakeCodeRepo{
		codes: []*model.CodeWithAudio{
			{Code: model.Code{ID: "id-1", Token: "abc12345"}},
		},
	}
	svc := newTestService(repo)
	ctx := context.Background()

	code, err := svc.GetByToken(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetByToken() ошибка: %v", err)
	}
	if code.ID != "id-1" {
		t.Errorf("ID = %q, ожидается id-1", code.ID)
	}

	if _, err := svc.GetByToken(ctx, "nope0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByToken(несуществующий) = %v, ожидается ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	repo := &fakeCodeRepo{
		codes: []*model.CodeWithAudio{
			{Code: model.Code{Token: "a"}, HasAudio: true},
			{Code: model.Code{Token: "b"}},
			{Code: model.Code{Token: "c"}, HasAudio: true},
		},
	}
	svc := newTestService(repo)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() ошибка: %v", err)
	}
	if stats.TotalCodes != 3 {
		t.Errorf("TotalCodes = %d, ожидается 3", stats.TotalCodes)
	}
	if stats.WithAudio != 2 {
		t.Errorf("WithAudio = %d, ожидается 2", stats.WithAudio)
	}
}

// --- CSV-экспорт ---

func TestExportCSV(t *testing.T) {
	createdAt := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	repo := &fakeCodeRepo{
		codes: []*model.CodeWithAudio{
			{Code: model.Code{Token: "abc12345", CreatedAt: createdAt}, HasAudio: true},
			{Code: model.Code{Token: "xyz00001", CreatedAt: createdAt}, HasAudio: false},
		},
	}
	svc := newTestService(repo)

	var buf bytes.Buffer
	if err := svc.ExportCSV(context.Background(), csv.NewWriter(&buf)); err != nil {
		t.Fatalf("ExportCSV() ошибка: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("в CSV %d строк, ожидается 3", len(lines))
	}
	if lines[0] != "QR_Code,URL,Created_At,Has_Audio" {
		t.Errorf("заголовок = %q, ожидается QR_Code,URL,Created_At,Has_Audio", lines[0])
	}
	if lines[1] != "abc12345,http://localhost:8080/qr/abc12345,2024-01-01,Yes" {
		t.Errorf("строка 1 = %q", lines[1])
	}
	if lines[2] != "xyz00001,http://localhost:8080/qr/xyz00001,2024-01-01,No" {
		t.Errorf("строка 2 = %q", lines[2])
	}
}

func TestExportFilename(t *testing.T) {
	svc := newTestService(&fakeCodeRepo{})

	if got := svc.ExportFilename(); got != "qr-codes-2024-01-01.csv" {
		t.Errorf("ExportFilename() = %q, ожидается qr-codes-2024-01-01.csv", got)
	}
}

func TestPageURL(t *testing.T) {
	svc := newTestService(&fakeCodeRepo{})

	if got := svc.PageURL("abc12345"); got != "http://localhost:8080/qr/abc12345" {
		t.Errorf("PageURL() = %q", got)
	}
}
