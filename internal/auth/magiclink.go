package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/arturkryukov/audiomemo/internal/mailer"
)

// MagicLinkService — запрос magic-link: выпуск токена и отправка письма.
type MagicLinkService struct {
	issuer  *TokenIssuer
	mailer  mailer.Mailer
	baseURL string
	logger  *slog.Logger
}

// NewMagicLinkService создаёт сервис отправки magic-link.
func NewMagicLinkService(issuer *TokenIssuer, m mailer.Mailer, baseURL string, logger *slog.Logger) *MagicLinkService {
	return &MagicLinkService{
		issuer:  issuer,
		mailer:  m,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("component", "magic_link")),
	}
}

// Request выпускает токен для email и отправляет письмо со ссылкой входа.
// next — путь возврата после подтверждения (только относительные пути,
// иначе игнорируется — защита от open redirect).
func (s *MagicLinkService) Request(ctx context.Context, email, next string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = ""
	}

	token, err := s.issuer.Issue(email, next)
	if err != nil {
		return fmt.Errorf("ошибка выпуска magic-link токена: %w", err)
	}

	link := fmt.Sprintf("%s/auth/callback?token=%s", s.baseURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		"Здравствуйте!\n\n"+
			"Для входа в Audio Memory перейдите по ссылке:\n\n%s\n\n"+
			"Ссылка действительна ограниченное время. Если вы не запрашивали вход, "+
			"просто проигнорируйте это письмо.\n",
		link,
	)

	if err := s.mailer.Send(ctx, email, "Вход в Audio Memory", body); err != nil {
		return fmt.Errorf("ошибка отправки magic-link письма: %w", err)
	}

	s.logger.Info("Magic-link отправлен", slog.String("email", email))
	return nil
}
