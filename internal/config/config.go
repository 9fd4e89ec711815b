// Пакет config — загрузка и валидация конфигурации Audio Memory
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса Audio Memory.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Публичный origin сервиса (используется в magic-link и CSV-экспорте)
	BaseURL string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Object storage (S3/MinIO) ---

	// Endpoint S3-совместимого хранилища (например, http://minio:9000)
	S3Endpoint string
	// Регион S3 (для MinIO значение произвольное)
	S3Region string
	// Bucket для аудиофайлов
	S3Bucket string
	// Access key
	S3AccessKey string
	// Secret key
	S3SecretKey string
	// Публичный базовый URL для выдачи ссылок на объекты.
	// Если не задан — используется S3Endpoint.
	S3PublicBaseURL string

	// --- SMTP (magic-link письма) ---

	// Хост SMTP-сервера. Пустое значение — письма только логируются (dev-режим).
	SMTPHost string
	// Порт SMTP-сервера
	SMTPPort int
	// Имя пользователя SMTP
	SMTPUser string
	// Пароль SMTP
	SMTPPassword string
	// Адрес отправителя
	SMTPFrom string

	// --- Аутентификация ---

	// Секрет для подписи magic-link токенов (HS256)
	MagicLinkSecret string
	// Время жизни magic-link токена
	MagicLinkTTL time.Duration
	// Ключ шифрования session cookie (AES-256-GCM)
	SessionSecret string
	// Email-адреса администраторов (через запятую, регистронезависимо)
	AdminEmails []string

	// --- Сессии записи ---

	// TTL неактивной сессии записи до удаления janitor-ом
	RecordingTTL time.Duration
	// Интервал запуска janitor-а сессий записи
	RecordingJanitorInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// AM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("AM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("AM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("AM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// AM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AM_LOG_LEVEL: %w", err)
	}

	// AM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// AM_BASE_URL — обязательный, публичный origin сервиса
	cfg.BaseURL, err = getEnvRequired("AM_BASE_URL")
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	// --- PostgreSQL ---

	// AM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("AM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// AM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("AM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("AM_DB_PORT: %w", err)
	}

	// AM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("AM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// AM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("AM_DB_USER")
	if err != nil {
		return nil, err
	}

	// AM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("AM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// AM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("AM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("AM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Object storage ---

	// AM_S3_ENDPOINT — обязательный
	cfg.S3Endpoint, err = getEnvRequired("AM_S3_ENDPOINT")
	if err != nil {
		return nil, err
	}
	cfg.S3Endpoint = strings.TrimRight(cfg.S3Endpoint, "/")

	// AM_S3_REGION — регион (по умолчанию us-east-1)
	cfg.S3Region = getEnvDefault("AM_S3_REGION", "us-east-1")

	// AM_S3_BUCKET — bucket аудиофайлов (по умолчанию audio-files)
	cfg.S3Bucket = getEnvDefault("AM_S3_BUCKET", "audio-files")

	// AM_S3_ACCESS_KEY — обязательный
	cfg.S3AccessKey, err = getEnvRequired("AM_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// AM_S3_SECRET_KEY — обязательный
	cfg.S3SecretKey, err = getEnvRequired("AM_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// AM_S3_PUBLIC_BASE_URL — публичный базовый URL (по умолчанию = endpoint)
	cfg.S3PublicBaseURL = strings.TrimRight(
		getEnvDefault("AM_S3_PUBLIC_BASE_URL", cfg.S3Endpoint), "/")

	// --- SMTP ---

	// AM_SMTP_HOST — опциональный (пусто — dev-режим, письма в лог)
	cfg.SMTPHost = getEnvDefault("AM_SMTP_HOST", "")

	// AM_SMTP_PORT — порт SMTP (по умолчанию 587)
	cfg.SMTPPort, err = getEnvInt("AM_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("AM_SMTP_PORT: %w", err)
	}

	cfg.SMTPUser = getEnvDefault("AM_SMTP_USER", "")
	cfg.SMTPPassword = getEnvDefault("AM_SMTP_PASSWORD", "")

	// AM_SMTP_FROM — адрес отправителя (по умолчанию noreply@audiomemo.local)
	cfg.SMTPFrom = getEnvDefault("AM_SMTP_FROM", "noreply@audiomemo.local")

	// --- Аутентификация ---

	// AM_MAGIC_LINK_SECRET — обязательный, секрет подписи токенов
	cfg.MagicLinkSecret, err = getEnvRequired("AM_MAGIC_LINK_SECRET")
	if err != nil {
		return nil, err
	}

	// AM_MAGIC_LINK_TTL — время жизни токена (по умолчанию 15m)
	cfg.MagicLinkTTL, err = getEnvDuration("AM_MAGIC_LINK_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AM_MAGIC_LINK_TTL: %w", err)
	}

	// AM_SESSION_SECRET — опциональный (пусто — случайный ключ на рестарт)
	cfg.SessionSecret = getEnvDefault("AM_SESSION_SECRET", "")

	// AM_ADMIN_EMAILS — обязательный, список администраторов
	adminEmails, err := getEnvRequired("AM_ADMIN_EMAILS")
	if err != nil {
		return nil, err
	}
	cfg.AdminEmails = parseCSV(strings.ToLower(adminEmails))
	if len(cfg.AdminEmails) == 0 {
		return nil, fmt.Errorf("AM_ADMIN_EMAILS: список администраторов пуст")
	}

	// --- Сессии записи ---

	// AM_RECORDING_TTL — TTL сессии записи (по умолчанию 30m)
	cfg.RecordingTTL, err = getEnvDuration("AM_RECORDING_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AM_RECORDING_TTL: %w", err)
	}

	// AM_RECORDING_JANITOR_INTERVAL — интервал janitor-а (по умолчанию 5m)
	cfg.RecordingJanitorInterval, err = getEnvDuration("AM_RECORDING_JANITOR_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AM_RECORDING_JANITOR_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// AM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("AM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// IsAdmin проверяет, входит ли email в список администраторов.
// Сравнение регистронезависимое.
func (c *Config) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
