package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики сессий записи.
var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiomemo_recording_sessions_active",
		Help: "Количество активных сессий записи в памяти",
	})

	sessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiomemo_recording_sessions_reaped_total",
		Help: "Количество сессий записи, удалённых janitor-ом по TTL",
	})
)

// Manager — реестр сессий записи в памяти с фоновой очисткой
// заброшенных сессий по TTL.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager создаёт менеджер сессий записи.
// ttl — время неактивности до удаления, interval — период janitor-а.
func NewManager(ttl, interval time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		interval: interval,
		logger:   logger.With(slog.String("component", "recorder")),
	}
}

// GetOrCreate возвращает сессию по идентификатору, создавая при отсутствии.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := NewSession(id)
	m.sessions[id] = s
	sessionsActive.Set(float64(len(m.sessions)))
	return s
}

// Remove удаляет сессию из реестра.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	sessionsActive.Set(float64(len(m.sessions)))
}

// Start запускает фоновую горутину очистки заброшенных сессий.
// Вызывается один раз при старте приложения.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		m.logger.Info("Очистка сессий записи запущена",
			slog.String("ttl", m.ttl.String()),
			slog.String("interval", m.interval.String()),
		)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info("Очистка сессий записи остановлена")
				return
			case <-ticker.C:
				reaped := m.reap()
				if reaped > 0 {
					m.logger.Info("Заброшенные сессии записи удалены",
						slog.Int("count", reaped),
					)
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

// reap удаляет сессии, неактивные дольше TTL. Возвращает количество удалённых.
func (m *Manager) reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.ttl)
	var reaped int
	for id, s := range m.sessions {
		s.mu.Lock()
		stale := s.lastActivity.Before(cutoff)
		s.mu.Unlock()
		if stale {
			delete(m.sessions, id)
			reaped++
		}
	}
	if reaped > 0 {
		sessionsActive.Set(float64(len(m.sessions)))
		sessionsReaped.Add(float64(reaped))
	}
	return reaped
}
