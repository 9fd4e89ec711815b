// handler.go — корневой обработчик JSON API Audio Memory.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/arturkryukov/audiomemo/internal/auth"
	"github.com/arturkryukov/audiomemo/internal/recorder"
	"github.com/arturkryukov/audiomemo/internal/service"
	"github.com/arturkryukov/audiomemo/internal/upload"
)

// APIHandler — корневой обработчик JSON API.
type APIHandler struct {
	Health     *HealthHandler
	Codes      *CodesHandler
	Audio      *AudioHandler
	Recordings *RecordingsHandler
	Auth       *AuthHandler
}

// NewAPIHandler создаёт корневой обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	codes *service.CodeService,
	uploads *upload.Service,
	sessions *recorder.Manager,
	magicLink *auth.MagicLinkService,
	issuer *auth.TokenIssuer,
	cookieSessions *auth.SessionManager,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		Health:     health,
		Codes:      NewCodesHandler(codes, logger),
		Audio:      NewAudioHandler(codes, uploads, logger),
		Recordings: NewRecordingsHandler(codes, uploads, sessions, logger),
		Auth:       NewAuthHandler(magicLink, issuer, cookieSessions, logger),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
