// recordings.go — жизненный цикл серверной сессии записи:
// старт, приём фрагментов, остановка, preview, отмена, сохранение.
// Сессия идентифицируется парой (email пользователя, токен кода).
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/audiomemo/internal/api/errors"
	"github.com/arturkryukov/audiomemo/internal/api/middleware"
	"github.com/arturkryukov/audiomemo/internal/recorder"
	"github.com/arturkryukov/audiomemo/internal/service"
	"github.com/arturkryukov/audiomemo/internal/upload"
)

// maxChunkSize — лимит одного фрагмента записи.
const maxChunkSize = 2 * 1024 * 1024

// RecordingsHandler — обработчик сессий записи.
type RecordingsHandler struct {
	codes    *service.CodeService
	uploads  *upload.Service
	sessions *recorder.Manager
	gate     recorder.CaptureGate
	logger   *slog.Logger
}

// NewRecordingsHandler создаёт обработчик сессий записи.
func NewRecordingsHandler(
	codes *service.CodeService,
	uploads *upload.Service,
	sessions *recorder.Manager,
	logger *slog.Logger,
) *RecordingsHandler {
	return &RecordingsHandler{
		codes:    codes,
		uploads:  uploads,
		sessions: sessions,
		gate:     recorder.OpenGate(),
		logger:   logger.With(slog.String("component", "recordings_handler")),
	}
}

// stateResponse — состояние сессии записи в ответах API.
type stateResponse struct {
	State   string `json:"state"`
	Elapsed string `json:"elapsed"`
}

func newStateResponse(s *recorder.Session) stateResponse {
	return stateResponse{
		State:   string(s.State()),
		Elapsed: recorder.FormatElapsed(s.Elapsed()),
	}
}

// session находит код по токену из URL и возвращает сессию записи
// текущего пользователя для этого кода.
func (h *RecordingsHandler) session(w http.ResponseWriter, r *http.Request) (*recorder.Session, string, bool) {
	token := chi.URLParam(r, "token")

	code, err := h.codes.GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "код не найден")
			return nil, "", false
		}
		h.logger.Error("Ошибка получения кода", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить код")
		return nil, "", false
	}

	email := middleware.UserEmail(r.Context())
	return h.sessions.GetOrCreate(email + "|" + code.Token), code.ID, true
}

// State — GET /api/v1/qr/{token}/recording. Текущее состояние сессии.
func (h *RecordingsHandler) State(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s))
}

// Start — POST /api/v1/qr/{token}/recording/start. idle → recording.
func (h *RecordingsHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Start(r.Context(), h.gate); err != nil {
		writeRecorderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s))
}

// Chunk — POST /api/v1/qr/{token}/recording/chunk. Приём фрагмента аудио.
func (h *RecordingsHandler) Chunk(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChunkSize)
	chunk, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.TooLarge(w, "фрагмент превышает допустимый размер")
			return
		}
		apierrors.ValidationError(w, "не удалось прочитать фрагмент")
		return
	}

	if err := s.Push(chunk); err != nil {
		writeRecorderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s))
}

// Stop — POST /api/v1/qr/{token}/recording/stop. recording → reviewing.
func (h *RecordingsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Stop(); err != nil {
		writeRecorderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s))
}

// Preview — GET /api/v1/qr/{token}/recording/preview. Склеенная дорожка
// для прослушивания перед сохранением.
func (h *RecordingsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}

	data, err := s.Preview()
	if err != nil {
		writeRecorderError(w, err)
		return
	}

	w.Header().Set("Content-Type", recorder.PreviewContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// Discard — POST /api/v1/qr/{token}/recording/discard. reviewing → idle.
func (h *RecordingsHandler) Discard(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Discard(); err != nil {
		writeRecorderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s))
}

// Save — POST /api/v1/qr/{token}/recording/save. Сохранение записи.
// При ошибке сохранения сессия остаётся в reviewing — клиент может
// повторить запрос.
func (h *RecordingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, codeID, ok := h.session(w, r)
	if !ok {
		return
	}

	att, err := s.Save(r.Context(), h.uploads, codeID, middleware.UserEmail(r.Context()))
	if err != nil {
		if errors.Is(err, recorder.ErrInvalidState) {
			writeRecorderError(w, err)
			return
		}
		writeUploadError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, attachmentResponse{
		ID:        att.ID,
		AudioURL:  att.AudioURL,
		CreatedAt: att.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// writeRecorderError транслирует ошибки сессии записи в HTTP-ответы.
func writeRecorderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recorder.ErrInvalidState):
		apierrors.InvalidState(w, err.Error())
	case errors.Is(err, recorder.ErrCapabilityDenied):
		apierrors.CaptureDenied(w, "запись запрещена")
	default:
		apierrors.InternalError(w, "ошибка сессии записи")
	}
}
