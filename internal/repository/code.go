package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/audiomemo/internal/domain/model"
)

// CodeRepository — доступ к таблице qr_codes.
// Коды неизменяемы: операции обновления и удаления не предусмотрены.
type CodeRepository interface {
	// CreateBatch вставляет пакет кодов одной операцией.
	// При коллизии токена возвращает ErrConflict.
	CreateBatch(ctx context.Context, codes []*model.Code) error
	// GetByToken возвращает код по его короткому токену.
	GetByToken(ctx context.Context, token string) (*model.Code, error)
	// ListWithAudioFlag возвращает все коды с флагом наличия аудио,
	// отсортированные по created_at DESC.
	ListWithAudioFlag(ctx context.Context) ([]*model.CodeWithAudio, error)
	// Count возвращает общее количество кодов.
	Count(ctx context.Context) (int, error)
	// CountWithAudio возвращает количество кодов с привязанным аудио.
	CountWithAudio(ctx context.Context) (int, error)
}

// codeRepo — реализация CodeRepository.
type codeRepo struct {
	db DBTX
}

// NewCodeRepository создаёт репозиторий QR-кодов.
func NewCodeRepository(db DBTX) CodeRepository {
	return &codeRepo{db: db}
}

func (r *codeRepo) CreateBatch(ctx context.Context, codes []*model.Code) error {
	if len(codes) == 0 {
		return nil
	}

	// Пакетная вставка через pgx.Batch — один round-trip на пакет
	batch := &pgx.Batch{}
	for _, c := range codes {
		batch.Queue(
			`INSERT INTO qr_codes (id, token) VALUES ($1, $2) RETURNING created_at`,
			c.ID, c.Token,
		)
	}

	// Вставка выполняется в транзакции: коллизия токена откатывает
	// пакет целиком, частично вставленных кодов не остаётся
	return runInTx(ctx, r.db, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for _, c := range codes {
			if err := results.QueryRow().Scan(&c.CreatedAt); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: токен %q уже существует", ErrConflict, c.Token)
				}
				return fmt.Errorf("ошибка создания кода: %w", err)
			}
		}
		return nil
	})
}

func (r *codeRepo) GetByToken(ctx context.Context, token string) (*model.Code, error) {
	query := `
		SELECT id, token, created_at
		FROM qr_codes
		WHERE token = $1`

	c := &model.Code{}
	err := r.db.QueryRow(ctx, query, token).Scan(&c.ID, &c.Token, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения кода: %w", err)
	}
	return c, nil
}

func (r *codeRepo) ListWithAudioFlag(ctx context.Context) ([]*model.CodeWithAudio, error) {
	query := `
		SELECT c.id, c.token, c.created_at,
			EXISTS (SELECT 1 FROM audio_memories a WHERE a.qr_code_id = c.id) AS has_audio
		FROM qr_codes c
		ORDER BY c.created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка кодов: %w", err)
	}
	defer rows.Close()

	var result []*model.CodeWithAudio
	for rows.Next() {
		c := &model.CodeWithAudio{}
		if err := rows.Scan(&c.ID, &c.Token, &c.CreatedAt, &c.HasAudio); err != nil {
			return nil, fmt.Errorf("ошибка сканирования кода: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *codeRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM qr_codes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта кодов: %w", err)
	}
	return count, nil
}

func (r *codeRepo) CountWithAudio(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM qr_codes c
		WHERE EXISTS (SELECT 1 FROM audio_memories a WHERE a.qr_code_id = c.id)`

	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта кодов с аудио: %w", err)
	}
	return count, nil
}
