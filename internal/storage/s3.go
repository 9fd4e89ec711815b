// Пакет storage — адаптер S3-совместимого object storage (MinIO, S3).
// Запись аудиофайлов и выдача публичных URL. Bucket предполагается
// настроенным на публичное чтение (public-read policy).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/arturkryukov/audiomemo/internal/config"
)

// ObjectStore — абстракция object storage для сервиса загрузки.
type ObjectStore interface {
	// WriteBlob записывает объект под указанным ключом.
	WriteBlob(ctx context.Context, key string, data []byte, contentType string) error
	// PublicURLFor возвращает публичный URL объекта по ключу.
	PublicURLFor(key string) string
}

// S3Store — реализация ObjectStore поверх aws-sdk-go-v2.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

// New создаёт S3Store: статические креды + кастомный endpoint (MinIO).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации AWS SDK: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		// MinIO не поддерживает virtual-hosted style
		o.UsePathStyle = true
	})

	return &S3Store{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: cfg.S3PublicBaseURL,
		logger:        logger.With(slog.String("component", "s3_store")),
	}, nil
}

// WriteBlob записывает объект в bucket под указанным ключом.
func (s *S3Store) WriteBlob(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("ошибка записи объекта %q: %w", key, err)
	}

	s.logger.Debug("Объект записан",
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.String("content_type", contentType),
	)
	return nil
}

// PublicURLFor возвращает публичный URL объекта (path-style).
func (s *S3Store) PublicURLFor(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
}

// ReadinessChecker — проверка доступности object storage для health endpoint.
type ReadinessChecker struct {
	client *s3.Client
	bucket string
}

// NewReadinessChecker создаёт проверку готовности object storage.
func NewReadinessChecker(store *S3Store) *ReadinessChecker {
	return &ReadinessChecker{client: store.client, bucket: store.bucket}
}

// CheckReady проверяет доступность bucket через HeadBucket.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return "fail", fmt.Sprintf("object storage недоступен: %v", err)
	}
	return "ok", "bucket доступен"
}
