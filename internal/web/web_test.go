package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/audiomemo/internal/api/middleware"
	"github.com/arturkryukov/audiomemo/internal/auth"
	"github.com/arturkryukov/audiomemo/internal/domain/model"
	"github.com/arturkryukov/audiomemo/internal/repository"
	"github.com/arturkryukov/audiomemo/internal/service"
)

// fakeCodeRepo — in-memory репозиторий кодов.
type fakeCodeRepo struct {
	codes []*model.CodeWithAudio
}

func (f *fakeCodeRepo) CreateBatch(_ context.Context, codes []*model.Code) error {
	for _, c := range codes {
		c.CreatedAt = time.Now()
		f.codes = append(f.codes, &model.CodeWithAudio{Code: *c})
	}
	return nil
}

func (f *fakeCodeRepo) GetByToken(_ context.Context, token string) (*model.Code, error) {
	for _, c := range f.codes {
		if c.Token == token {
			return &c.Code, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCodeRepo) ListWithAudioFlag(context.Context) ([]*model.CodeWithAudio, error) {
	return f.codes, nil
}

func (f *fakeCodeRepo) Count(context.Context) (int, error) { return len(f.codes), nil }

func (f *fakeCodeRepo) CountWithAudio(context.Context) (int, error) {
	var n int
	for _, c := range f.codes {
		if c.HasAudio {
			n++
		}
	}
	return n, nil
}

type fakeAttRepo struct {
	byCode map[string]*model.Attachment
}

func (f *fakeAttRepo) Create(_ context.Context, a *model.Attachment) error {
	f.byCode[a.CodeID] = a
	return nil
}

func (f *fakeAttRepo) GetByCodeID(_ context.Context, codeID string) (*model.Attachment, error) {
	a, ok := f.byCode[codeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

// adminList — проверка администратора по фиксированному списку.
type adminList []string

func (a adminList) IsAdmin(email string) bool {
	for _, e := range a {
		if e == email {
			return true
		}
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv собирает обработчик страниц с in-memory данными и роутер
// с session-аутентификацией.
type testEnv struct {
	router   *chi.Mux
	sessions *auth.SessionManager
	codeRepo *fakeCodeRepo
	attRepo  *fakeAttRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codeRepo := &fakeCodeRepo{}
	attRepo := &fakeAttRepo{byCode: map[string]*model.Attachment{}}
	codes := service.NewCodeService(codeRepo, attRepo, "http://localhost:8080", testLogger())

	sessions, err := auth.NewSessionManager("test-secret", false)
	if err != nil {
		t.Fatalf("NewSessionManager() ошибка: %v", err)
	}
	sessionAuth := middleware.NewSessionAuth(sessions, adminList{"admin@example.com"}, testLogger())

	h := NewPageHandler(codes, adminList{"admin@example.com"}, testLogger())

	router := chi.NewRouter()
	router.Use(sessionAuth.WithUser)
	router.Get("/", h.Landing)
	router.Get("/qr/{token}", h.QRPage)
	router.Get("/admin", h.AdminDashboard)
	router.Get("/admin/login", h.AdminLogin)
	router.Post("/admin/generate", h.AdminGenerate)

	return &testEnv{router: router, sessions: sessions, codeRepo: codeRepo, attRepo: attRepo}
}

// signIn добавляет к запросу cookie валидной сессии.
func (e *testEnv) signIn(t *testing.T, r *http.Request, email string) {
	t.Helper()

	w := httptest.NewRecorder()
	err := e.sessions.SetSessionCookie(w, &auth.SessionData{
		Email:     email,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("SetSessionCookie() ошибка: %v", err)
	}
	r.AddCookie(w.Result().Cookies()[0])
}

func (e *testEnv) addCode(token string, hasAudio bool) {
	code := &model.CodeWithAudio{
		Code: model.Code{
			ID:        "id-" + token,
			Token:     token,
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		HasAudio: hasAudio,
	}
	e.codeRepo.codes = append(e.codeRepo.codes, code)
	if hasAudio {
		e.attRepo.byCode[code.ID] = &model.Attachment{
			ID:       "att-" + token,
			CodeID:   code.ID,
			AudioURL: "http://minio:9000/audio-files/" + code.ID + "-1.mp3",
		}
	}
}

// --- Страница QR-кода ---

func TestQRPage_NotFound(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/qr/nope0000", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидается 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Код не найден") {
		t.Error("страница не содержит сообщение о ненайденном коде")
	}
}

func TestQRPage_Player(t *testing.T) {
	env := newTestEnv(t)
	env.addCode("abc12345", true)

	r := httptest.NewRequest(http.MethodGet, "/qr/abc12345", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "http://minio:9000/audio-files/id-abc12345-1.mp3") {
		t.Error("страница плеера не содержит URL аудио")
	}
	// Начальное состояние плеера: 0:00, кольцо с радиусом 88
	if !strings.Contains(body, "0:00") {
		t.Error("страница плеера не содержит начальное время 0:00")
	}
	if !strings.Contains(body, `r="88"`) {
		t.Error("кольцевой индикатор не содержит радиус 88")
	}
}

func TestQRPage_UploaderAnonymous(t *testing.T) {
	env := newTestEnv(t)
	env.addCode("abc12345", false)

	r := httptest.NewRequest(http.MethodGet, "/qr/abc12345", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", w.Code)
	}
	body := w.Body.String()
	// Без сессии — форма запроса magic-link, без формы загрузки
	if !strings.Contains(body, "/auth/magic-link") {
		t.Error("страница не содержит форму запроса ссылки входа")
	}
	if strings.Contains(body, "upload-form") {
		t.Error("форма загрузки показана неаутентифицированному посетителю")
	}
}

func TestQRPage_UploaderSignedIn(t *testing.T) {
	env := newTestEnv(t)
	env.addCode("abc12345", false)

	r := httptest.NewRequest(http.MethodGet, "/qr/abc12345", nil)
	env.signIn(t, r, "visitor@example.com")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "upload-form") {
		t.Error("страница не содержит форму загрузки для вошедшего посетителя")
	}
	if !strings.Contains(body, `id="recorder"`) {
		t.Error("страница не содержит блок записи с микрофона")
	}
}

// --- Админ-панель ---

func TestAdminDashboard_RedirectsAnonymous(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("статус = %d, ожидается 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/login" {
		t.Errorf("Location = %q, ожидается /admin/login", loc)
	}
}

func TestAdminDashboard_ForbiddenForNonAdmin(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	env.signIn(t, r, "visitor@example.com")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("статус = %d, ожидается 403", w.Code)
	}
}

func TestAdminDashboard_RendersCodes(t *testing.T) {
	env := newTestEnv(t)
	env.addCode("abc12345", true)
	env.addCode("xyz00001", false)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	env.signIn(t, r, "admin@example.com")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "abc12345") || !strings.Contains(body, "xyz00001") {
		t.Error("админ-панель не содержит токены кодов")
	}
	if !strings.Contains(body, "http://localhost:8080/qr/abc12345") {
		t.Error("админ-панель не содержит URL страницы кода")
	}
}

func TestAdminGenerate(t *testing.T) {
	env := newTestEnv(t)

	form := strings.NewReader("count=3")
	r := httptest.NewRequest(http.MethodPost, "/admin/generate", form)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.signIn(t, r, "admin@example.com")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("статус = %d, ожидается 303", w.Code)
	}
	if len(env.codeRepo.codes) != 3 {
		t.Errorf("создано %d кодов, ожидается 3", len(env.codeRepo.codes))
	}
}
