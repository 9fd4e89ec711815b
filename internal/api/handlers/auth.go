// auth.go — passwordless-вход: запрос magic-link, подтверждение по
// ссылке из письма, выход.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	apierrors "github.com/arturkryukov/audiomemo/internal/api/errors"
	"github.com/arturkryukov/audiomemo/internal/auth"
)

// sessionTTL — время жизни cookie-сессии после входа.
const sessionTTL = 24 * time.Hour

// AuthHandler — обработчик passwordless-аутентификации.
type AuthHandler struct {
	magicLink *auth.MagicLinkService
	issuer    *auth.TokenIssuer
	sessions  *auth.SessionManager
	logger    *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(
	magicLink *auth.MagicLinkService,
	issuer *auth.TokenIssuer,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		magicLink: magicLink,
		issuer:    issuer,
		sessions:  sessions,
		logger:    logger.With(slog.String("component", "auth_handler")),
	}
}

// magicLinkRequest — тело запроса отправки magic-link.
type magicLinkRequest struct {
	Email string `json:"email"`
	Next  string `json:"next"`
}

// RequestMagicLink — POST /auth/magic-link. Отправляет письмо со ссылкой входа.
// Принимает и JSON, и обычную HTML-форму.
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "некорректное тело запроса")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			apierrors.ValidationError(w, "некорректная форма")
			return
		}
		req.Email = r.PostFormValue("email")
		req.Next = r.PostFormValue("next")
	}

	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		apierrors.ValidationError(w, "некорректный email")
		return
	}

	if err := h.magicLink.Request(r.Context(), req.Email, req.Next); err != nil {
		h.logger.Error("Ошибка отправки magic-link", slog.String("error", err.Error()))
		apierrors.AuthRequestFailed(w, "не удалось отправить письмо, попробуйте позже")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "sent",
	})
}

// Callback — GET /auth/callback?token=... Подтверждение входа по ссылке
// из письма: проверка токена, установка cookie-сессии, редирект.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		apierrors.ValidationError(w, "отсутствует токен")
		return
	}

	claims, err := h.issuer.Verify(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			apierrors.Unauthorized(w, "срок действия ссылки истёк, запросите новую")
			return
		}
		apierrors.Unauthorized(w, "недействительная ссылка")
		return
	}

	session := &auth.SessionData{
		Email:     claims.Email,
		ExpiresAt: time.Now().Add(sessionTTL).Unix(),
	}
	if err := h.sessions.SetSessionCookie(w, session); err != nil {
		h.logger.Error("Ошибка установки сессии", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось создать сессию")
		return
	}

	h.logger.Info("Вход по magic-link", slog.String("email", claims.Email))

	next := claims.Next
	if next == "" {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout — POST /auth/logout. Удаляет cookie-сессию.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
