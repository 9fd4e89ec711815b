// Пакет web — HTML-страницы Audio Memory: главная, страница QR-кода
// (плеер или загрузчик), админ-панель. Шаблоны встраиваются в бинарник
// через //go:embed.
package web

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/audiomemo/internal/api/middleware"
	"github.com/arturkryukov/audiomemo/internal/playback"
	"github.com/arturkryukov/audiomemo/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

// pageNames — страницы, для каждой собирается набор base + страница.
var pageNames = []string{
	"landing", "admin_login", "admin_dashboard",
	"qr_not_found", "qr_player", "qr_uploader",
}

// parsePages собирает наборы шаблонов. Паника при ошибке парсинга
// допустима: шаблоны встроены и проверяются на старте.
func parsePages() map[string]*template.Template {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pages[name] = template.Must(template.ParseFS(templatesFS,
			"templates/base.html", "templates/"+name+".html"))
	}
	return pages
}

// AdminChecker — проверка прав администратора по email.
type AdminChecker interface {
	IsAdmin(email string) bool
}

// PageHandler — обработчик HTML-страниц.
type PageHandler struct {
	codes  *service.CodeService
	admins AdminChecker
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewPageHandler создаёт обработчик HTML-страниц.
func NewPageHandler(codes *service.CodeService, admins AdminChecker, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		codes:  codes,
		admins: admins,
		pages:  parsePages(),
		logger: logger.With(slog.String("component", "web")),
	}
}

// render отрисовывает страницу с указанным статусом.
func (h *PageHandler) render(w http.ResponseWriter, status int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("Ошибка рендеринга страницы",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// Landing — GET /. Главная страница.
func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "landing", nil)
}

// playerData — данные страницы плеера.
type playerData struct {
	AudioURL          string
	RingRadius        float64
	RingCircumference float64
}

// uploaderData — данные страницы загрузчика.
type uploaderData struct {
	Token    string
	SignedIn bool
}

// QRPage — GET /qr/{token}. Три варианта страницы:
// код не найден, плеер (аудио привязано), загрузчик (аудио нет).
func (h *PageHandler) QRPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	code, err := h.codes.GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.render(w, http.StatusNotFound, "qr_not_found", nil)
			return
		}
		h.logger.Error("Ошибка получения кода", slog.String("error", err.Error()))
		http.Error(w, "внутренняя ошибка", http.StatusInternalServerError)
		return
	}

	att, err := h.codes.AttachmentForCode(r.Context(), code.ID)
	switch {
	case err == nil:
		h.render(w, http.StatusOK, "qr_player", playerData{
			AudioURL:          att.AudioURL,
			RingRadius:        playback.RingRadius,
			RingCircumference: playback.RingCircumference,
		})
	case errors.Is(err, service.ErrNotFound):
		h.render(w, http.StatusOK, "qr_uploader", uploaderData{
			Token:    code.Token,
			SignedIn: middleware.UserEmail(r.Context()) != "",
		})
	default:
		h.logger.Error("Ошибка получения аудиозаписи", slog.String("error", err.Error()))
		http.Error(w, "внутренняя ошибка", http.StatusInternalServerError)
	}
}

// loginData — данные страницы входа.
type loginData struct {
	Sent bool
	Next string
}

// AdminLogin — GET /admin/login. Форма запроса magic-link.
func (h *PageHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "admin_login", loginData{
		Sent: r.URL.Query().Get("sent") == "1",
		Next: "/admin",
	})
}

// dashboardCode — строка таблицы кодов в админ-панели.
type dashboardCode struct {
	Token     string
	URL       string
	CreatedAt string
	HasAudio  bool
}

// dashboardData — данные админ-панели.
type dashboardData struct {
	Email string
	Stats *service.Stats
	Codes []dashboardCode
}

// AdminDashboard — GET /admin. Список кодов, статистика, генерация.
// Неаутентифицированный запрос перенаправляется на страницу входа.
func (h *PageHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	if email == "" {
		http.Redirect(w, r, "/admin/login", http.StatusFound)
		return
	}
	if !h.admins.IsAdmin(email) {
		http.Error(w, "недостаточно прав", http.StatusForbidden)
		return
	}

	stats, err := h.codes.Stats(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения статистики", slog.String("error", err.Error()))
		http.Error(w, "внутренняя ошибка", http.StatusInternalServerError)
		return
	}

	codes, err := h.codes.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка кодов", slog.String("error", err.Error()))
		http.Error(w, "внутренняя ошибка", http.StatusInternalServerError)
		return
	}

	data := dashboardData{Email: email, Stats: stats}
	for _, c := range codes {
		data.Codes = append(data.Codes, dashboardCode{
			Token:     c.Token,
			URL:       h.codes.PageURL(c.Token),
			CreatedAt: c.CreatedAt.Format("2006-01-02"),
			HasAudio:  c.HasAudio,
		})
	}

	h.render(w, http.StatusOK, "admin_dashboard", data)
}

// AdminGenerate — POST /admin/generate. Генерация пакета из формы
// админ-панели, по завершении редирект обратно на /admin.
func (h *PageHandler) AdminGenerate(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	if email == "" {
		http.Redirect(w, r, "/admin/login", http.StatusFound)
		return
	}
	if !h.admins.IsAdmin(email) {
		http.Error(w, "недостаточно прав", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "некорректная форма", http.StatusBadRequest)
		return
	}
	count, _ := strconv.Atoi(r.PostFormValue("count"))
	if count <= 0 {
		count = service.DefaultBatchSize
	}

	if _, err := h.codes.GenerateBatch(r.Context(), count); err != nil {
		if errors.Is(err, service.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Ошибка генерации кодов", slog.String("error", err.Error()))
		http.Error(w, "внутренняя ошибка", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
