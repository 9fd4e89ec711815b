// auth.go — middleware аутентификации по session cookie.
// Сессия создаётся после перехода по magic-link; права администратора
// определяются списком AM_ADMIN_EMAILS.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/audiomemo/internal/api/errors"
	"github.com/arturkryukov/audiomemo/internal/auth"
)

// contextKey — тип ключей контекста пакета (защита от коллизий).
type contextKey string

// userEmailKey — ключ контекста с email аутентифицированного пользователя.
const userEmailKey contextKey = "user_email"

// UserEmail возвращает email пользователя из контекста запроса.
// Пустая строка, если запрос не аутентифицирован.
func UserEmail(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey).(string)
	return email
}

// AdminChecker — проверка прав администратора по email.
type AdminChecker interface {
	IsAdmin(email string) bool
}

// SessionAuth — middleware аутентификации по session cookie.
type SessionAuth struct {
	sessions *auth.SessionManager
	admins   AdminChecker
	logger   *slog.Logger
}

// NewSessionAuth создаёт middleware аутентификации.
func NewSessionAuth(sessions *auth.SessionManager, admins AdminChecker, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		sessions: sessions,
		admins:   admins,
		logger:   logger.With(slog.String("component", "session_auth")),
	}
}

// WithUser кладёт email пользователя в контекст, если валидная сессия
// присутствует. Запрос без сессии проходит дальше неаутентифицированным.
func (a *SessionAuth) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.sessions.GetSessionFromRequest(r)
		if err != nil {
			// Повреждённый или чужой cookie — считаем запрос анонимным
			a.logger.Debug("Некорректный session cookie", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}
		if session == nil || session.IsExpired() {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userEmailKey, session.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser пропускает только аутентифицированные запросы.
// Применяется после WithUser.
func (a *SessionAuth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserEmail(r.Context()) == "" {
			apierrors.Unauthorized(w, "требуется вход по ссылке из письма")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin пропускает только администраторов.
// Применяется после WithUser.
func (a *SessionAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := UserEmail(r.Context())
		if email == "" {
			apierrors.Unauthorized(w, "требуется вход по ссылке из письма")
			return
		}
		if !a.admins.IsAdmin(email) {
			a.logger.Warn("Отказ в доступе к админ-панели", slog.String("email", email))
			apierrors.Forbidden(w, "недостаточно прав")
			return
		}
		next.ServeHTTP(w, r)
	})
}
