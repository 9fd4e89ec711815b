// Пакет recorder — серверные сессии записи аудио.
//
// Каждая сессия — конечный автомат: idle → recording → reviewing →
// {idle | сохранение}. Клиент присылает фрагменты аудио по мере записи,
// при остановке они склеиваются в preview-дорожку для прослушивания,
// после чего посетитель сохраняет её или отбрасывает.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arturkryukov/audiomemo/internal/domain/model"
	"github.com/arturkryukov/audiomemo/internal/upload"
)

// State — состояние сессии записи.
type State string

const (
	// StateIdle — запись не идёт, preview отсутствует.
	StateIdle State = "idle"
	// StateRecording — идёт приём фрагментов.
	StateRecording State = "recording"
	// StateReviewing — запись остановлена, preview доступен для прослушивания.
	StateReviewing State = "reviewing"
)

// PreviewContentType — контейнер склеенной записи.
const PreviewContentType = "audio/webm"

// Ошибки сессии записи.
var (
	// ErrInvalidState — операция недопустима в текущем состоянии сессии.
	ErrInvalidState = errors.New("недопустимая операция в текущем состоянии")
	// ErrCapabilityDenied — доступ к записи запрещён (нет разрешения на микрофон).
	ErrCapabilityDenied = errors.New("доступ к записи запрещён")
)

// CaptureGate — проверка разрешения на запись перед стартом.
// Реализация по умолчанию разрешает всё; клиентский отказ в доступе
// к микрофону транслируется сюда через API.
type CaptureGate interface {
	// Allow возвращает ошибку, если запись для сессии запрещена.
	Allow(ctx context.Context, sessionID string) error
}

// openGate — разрешает запись безусловно.
type openGate struct{}

func (openGate) Allow(context.Context, string) error { return nil }

// OpenGate возвращает gate, разрешающий запись всем сессиям.
func OpenGate() CaptureGate { return openGate{} }

// Session — одна сессия записи. Потокобезопасна.
type Session struct {
	mu sync.Mutex

	id     string
	state  State
	chunks [][]byte
	// preview — склеенная дорожка после Stop
	preview []byte
	// startedAt — момент перехода в recording
	startedAt time.Time
	// elapsed — длительность записи, фиксируется при Stop
	elapsed time.Duration
	// lastActivity — для janitor-а
	lastActivity time.Time

	now func() time.Time
}

// NewSession создаёт сессию в состоянии idle.
func NewSession(id string) *Session {
	now := time.Now
	return &Session{
		id:           id,
		state:        StateIdle,
		lastActivity: now(),
		now:          now,
	}
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string { return s.id }

// State возвращает текущее состояние сессии.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed возвращает длительность записи: растёт во время recording,
// фиксируется при Stop, обнуляется при Discard.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	if s.state == StateRecording {
		return s.now().Sub(s.startedAt)
	}
	return s.elapsed
}

// Start переводит сессию idle → recording.
// gate проверяется до смены состояния: при отказе сессия остаётся idle.
func (s *Session) Start(ctx context.Context, gate CaptureGate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: Start из состояния %s", ErrInvalidState, s.state)
	}
	if err := gate.Allow(ctx, s.id); err != nil {
		return fmt.Errorf("%w: %v", ErrCapabilityDenied, err)
	}

	s.state = StateRecording
	s.chunks = nil
	s.preview = nil
	s.startedAt = s.now()
	s.elapsed = 0
	s.touch()
	return nil
}

// Push добавляет фрагмент аудио. Допустимо только в recording.
func (s *Session) Push(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return fmt.Errorf("%w: Push из состояния %s", ErrInvalidState, s.state)
	}

	s.chunks = append(s.chunks, chunk)
	s.touch()
	return nil
}

// Stop переводит recording → reviewing: фрагменты склеиваются в
// preview-дорожку. Пустой список фрагментов не ошибка — получается
// пустая дорожка.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return fmt.Errorf("%w: Stop из состояния %s", ErrInvalidState, s.state)
	}

	var total int
	for _, c := range s.chunks {
		total += len(c)
	}
	s.preview = make([]byte, 0, total)
	for _, c := range s.chunks {
		s.preview = append(s.preview, c...)
	}

	s.elapsed = s.now().Sub(s.startedAt)
	s.chunks = nil
	s.state = StateReviewing
	s.touch()
	return nil
}

// Preview возвращает склеенную дорожку. Допустимо только в reviewing.
func (s *Session) Preview() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return nil, fmt.Errorf("%w: Preview из состояния %s", ErrInvalidState, s.state)
	}
	return s.preview, nil
}

// Discard отбрасывает preview и возвращает сессию в idle.
// Длительность записи обнуляется.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return fmt.Errorf("%w: Discard из состояния %s", ErrInvalidState, s.state)
	}

	s.preview = nil
	s.elapsed = 0
	s.state = StateIdle
	s.touch()
	return nil
}

// Save сохраняет preview через сервис загрузки. При успехе сессия
// возвращается в idle. При ошибке сохранения сессия остаётся в
// reviewing — посетитель может повторить попытку или отбросить запись.
func (s *Session) Save(ctx context.Context, svc *upload.Service, codeID, uploaderEmail string) (*model.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return nil, fmt.Errorf("%w: Save из состояния %s", ErrInvalidState, s.state)
	}

	att, err := svc.Persist(ctx, codeID, uploaderEmail, &upload.Blob{
		Data:        s.preview,
		ContentType: PreviewContentType,
	})
	if err != nil {
		s.touch()
		return nil, err
	}

	s.preview = nil
	s.elapsed = 0
	s.state = StateIdle
	s.touch()
	return att, nil
}

// touch обновляет lastActivity. Вызывается под мьютексом.
func (s *Session) touch() {
	s.lastActivity = s.now()
}

// FormatElapsed форматирует длительность как "m:ss" (секунды с ведущим нулём).
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
