package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/audiomemo/internal/domain/model"
)

// AttachmentRepository — доступ к таблице audio_memories.
type AttachmentRepository interface {
	// Create вставляет новую аудиозапись.
	Create(ctx context.Context, a *model.Attachment) error
	// GetByCodeID возвращает аудиозапись для кода.
	// Модель данных допускает несколько записей на код — возвращается
	// самая ранняя (первая сохранённая).
	GetByCodeID(ctx context.Context, codeID string) (*model.Attachment, error)
}

// attachmentRepo — реализация AttachmentRepository.
type attachmentRepo struct {
	db DBTX
}

// NewAttachmentRepository создаёт репозиторий аудиозаписей.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepo{db: db}
}

func (r *attachmentRepo) Create(ctx context.Context, a *model.Attachment) error {
	query := `
		INSERT INTO audio_memories (id, qr_code_id, audio_url, uploader_email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.CodeID, a.AudioURL, a.UploaderEmail,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания аудиозаписи: %w", err)
	}
	return nil
}

func (r *attachmentRepo) GetByCodeID(ctx context.Context, codeID string) (*model.Attachment, error) {
	query := `
		SELECT id, qr_code_id, audio_url, uploader_email, created_at
		FROM audio_memories
		WHERE qr_code_id = $1
		ORDER BY created_at ASC
		LIMIT 1`

	a := &model.Attachment{}
	err := r.db.QueryRow(ctx, query, codeID).Scan(
		&a.ID, &a.CodeID, &a.AudioURL, &a.UploaderEmail, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения аудиозаписи: %w", err)
	}
	return a, nil
}
