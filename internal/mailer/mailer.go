// Пакет mailer — отправка писем со ссылками для входа.
// SMTP-реализация поверх github.com/wneessen/go-mail и dev-реализация,
// которая пишет письмо в лог вместо отправки.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"github.com/arturkryukov/audiomemo/internal/config"
)

// Mailer — абстракция отправки письма.
type Mailer interface {
	// Send отправляет письмо с указанной темой и текстовым телом.
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer — отправка писем через SMTP.
type SMTPMailer struct {
	client *gomail.Client
	from   string
	logger *slog.Logger
}

// NewSMTP создаёт SMTP-отправителя из конфигурации.
func NewSMTP(cfg *config.Config, logger *slog.Logger) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUser),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания SMTP-клиента: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.SMTPFrom,
		logger: logger.With(slog.String("component", "smtp_mailer")),
	}, nil
}

// Send отправляет письмо через SMTP.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("некорректный адрес отправителя: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("некорректный адрес получателя: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки письма: %w", err)
	}

	m.logger.Info("Письмо отправлено", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// LogMailer — dev-режим: письмо не отправляется, а пишется в лог.
// Используется, когда AM_SMTP_HOST не задан.
type LogMailer struct {
	logger *slog.Logger
}

// NewLog создаёт лог-отправителя.
func NewLog(logger *slog.Logger) *LogMailer {
	return &LogMailer{
		logger: logger.With(slog.String("component", "log_mailer")),
	}
}

// Send пишет письмо в лог на уровне Info.
func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("Письмо (dev-режим, не отправлено)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// New выбирает реализацию по конфигурации: SMTP при заданном хосте,
// иначе лог-отправитель.
func New(cfg *config.Config, logger *slog.Logger) (Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("AM_SMTP_HOST не задан, письма будут только логироваться")
		return NewLog(logger), nil
	}
	return NewSMTP(cfg, logger)
}
