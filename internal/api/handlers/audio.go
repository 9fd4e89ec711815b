// audio.go — загрузка готовых аудиофайлов и выдача информации об
// аудио, привязанном к коду.
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
	"github.com/arturkryukov/audiomemo/internal/service"
	"github.com/arturkryukov/audiomemo/internal/upload"
)

// AudioHandler — обработчик загрузки и выдачи аудио.
type AudioHandler struct {
	codes   *service.CodeService
	uploads *upload.Service
	logger  *slog.Logger
}

// NewAudioHandler создаёт обработчик аудио.
func NewAudioHandler(codes *service.CodeService, uploads *upload.Service, logger *slog.Logger) *AudioHandler {
	return &AudioHandler{
		codes:   codes,
		uploads: uploads,
		logger:  logger.With(slog.String("component", "audio_handler")),
	}
}

// attachmentResponse — аудиозапись в ответах API.
type attachmentResponse struct {
	ID        string `json:"id"`
	AudioURL  string `json:"audio_url"`
	CreatedAt string `json:"created_at"`
}

// Get — GET /api/v1/qr/{token}/audio. Информация об аудио кода.
func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	code, ok := h.lookupCode(w, r)
	if !ok {
		return
	}

	att, err := h.codes.AttachmentForCode(r.Context(), code.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "аудио не привязано")
			return
		}
		h.logger.Error("Ошибка получения аудиозаписи", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить аудиозапись")
		return
	}

	writeJSON(w, http.StatusOK, attachmentResponse{
		ID:        att.ID,
		AudioURL:  att.AudioURL,
		CreatedAt: att.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Upload — POST /api/v1/qr/{token}/audio. Загрузка готового файла
// (multipart/form-data, поле file). Требует аутентификации.
func (h *AudioHandler) Upload(w http.ResponseWriter, r *http.Request) {
	code, ok := h.lookupCode(w, r)
	if !ok {
		return
	}

	// Лимит с запасом на multipart-обвязку
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.TooLarge(w, "файл превышает допустимый размер")
			return
		}
		apierrors.ValidationError(w, "отсутствует поле file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.TooLarge(w, "файл превышает допустимый размер")
			return
		}
		h.logger.Error("Ошибка чтения файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось прочитать файл")
		return
	}

	att, err := h.uploads.Persist(r.Context(), code.ID, middleware.UserEmail(r.Context()), &upload.Blob{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeUploadError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, attachmentResponse{
		ID:        att.ID,
		AudioURL:  att.AudioURL,
		CreatedAt: att.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// lookupCode извлекает токен из URL и находит код.
// При отсутствии кода пишет 404 и возвращает ok=false.
func (h *AudioHandler) lookupCode(w http.ResponseWriter, r *http.Request) (code *codeRef, ok bool) {
	token := chi.URLParam(r, "token")

	c, err := h.codes.GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "код не найден")
			return nil, false
		}
		h.logger.Error("Ошибка получения кода", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить код")
		return nil, false
	}
	return &codeRef{ID: c.ID, Token: c.Token}, true
}

// codeRef — минимальная ссылка на код для обработчиков.
type codeRef struct {
	ID    string
	Token string
}

// writeUploadError транслирует ошибки сервиса загрузки в HTTP-ответы.
func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		apierrors.UnsupportedType(w, "допустимые типы: audio/mpeg, audio/wav, audio/x-m4a, audio/mp4, audio/webm")
	case errors.Is(err, upload.ErrTooLarge):
		apierrors.TooLarge(w, "файл превышает допустимый размер")
	case errors.Is(err, upload.ErrStorageWrite):
		apierrors.StorageWriteFailed(w, "не удалось записать файл в хранилище")
	case errors.Is(err, upload.ErrRecordCreate):
		apierrors.RecordCreateFailed(w, "файл записан, но запись не создана")
	default:
		apierrors.InternalError(w, "не удалось сохранить аудио")
	}
}
