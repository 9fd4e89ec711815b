// codes.go — admin API для QR-кодов: генерация пакетов, список,
// CSV-экспорт, рендеринг QR-картинок.
package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/audiomemo/internal/api/errors"
	"github.com/arturkryukov/audiomemo/internal/qrimage"
	"github.com/arturkryukov/audiomemo/internal/service"
)

// CodesHandler — обработчик admin API QR-кодов.
type CodesHandler struct {
	codes  *service.CodeService
	logger *slog.Logger
}

// NewCodesHandler создаёт обработчик QR-кодов.
func NewCodesHandler(codes *service.CodeService, logger *slog.Logger) *CodesHandler {
	return &CodesHandler{
		codes:  codes,
		logger: logger.With(slog.String("component", "codes_handler")),
	}
}

// generateRequest — тело запроса генерации пакета.
type generateRequest struct {
	Count int `json:"count"`
}

// codeResponse — один код в ответах API.
type codeResponse struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	HasAudio  bool   `json:"has_audio"`
}

// Generate — POST /api/v1/codes. Генерирует пакет кодов.
// count отсутствует или <= 0 — используется значение по умолчанию.
func (h *CodesHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	// Пустое тело допустимо — параметры по умолчанию
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Count <= 0 {
		req.Count = service.DefaultBatchSize
	}

	codes, err := h.codes.GenerateBatch(r.Context(), req.Count)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка генерации пакета кодов", slog.String("error", err.Error()))
			apierrors.InternalError(w, "не удалось сгенерировать коды")
		}
		return
	}

	resp := make([]codeResponse, 0, len(codes))
	for _, c := range codes {
		resp = append(resp, codeResponse{
			ID:        c.ID,
			Token:     c.Token,
			URL:       h.codes.PageURL(c.Token),
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusCreated, map[string]any{"codes": resp})
}

// List — GET /api/v1/codes. Все коды с флагом наличия аудио, новые первыми.
func (h *CodesHandler) List(w http.ResponseWriter, r *http.Request) {
	codes, err := h.codes.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка кодов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить список кодов")
		return
	}

	resp := make([]codeResponse, 0, len(codes))
	for _, c := range codes {
		resp = append(resp, codeResponse{
			ID:        c.ID,
			Token:     c.Token,
			URL:       h.codes.PageURL(c.Token),
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
			HasAudio:  c.HasAudio,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": resp})
}

// ExportCSV — GET /api/v1/codes/export. Выгрузка всех кодов в CSV.
func (h *CodesHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", h.codes.ExportFilename()))

	if err := h.codes.ExportCSV(r.Context(), csv.NewWriter(w)); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать
		h.logger.Error("Ошибка CSV-экспорта", slog.String("error", err.Error()))
	}
}

// QRImage — GET /api/v1/codes/{token}/qr.png. PNG QR-кода страницы.
// Необязательный параметр size — размер картинки в пикселях.
func (h *CodesHandler) QRImage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	code, err := h.codes.GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "код не найден")
			return
		}
		h.logger.Error("Ошибка получения кода", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить код")
		return
	}

	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		size, _ = strconv.Atoi(s)
	}

	png, err := qrimage.RenderPNG(h.codes.PageURL(code.Token), size)
	if err != nil {
		h.logger.Error("Ошибка рендеринга QR-кода", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось отрисовать QR-код")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}
