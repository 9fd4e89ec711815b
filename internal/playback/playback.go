// Пакет playback — состояние аудиоплеера и геометрия кольцевого
// индикатора прогресса. Контроллер не зависит от транспорта: реальное
// воспроизведение делегируется интерфейсу Transport, события времени
// и длительности приходят извне.
package playback

import (
	"fmt"
	"math"
)

// RingRadius — радиус кольцевого индикатора прогресса в пикселях.
const RingRadius = 88.0

// RingCircumference — длина окружности индикатора.
var RingCircumference = 2 * math.Pi * RingRadius

// Transport — абстракция аудиодвижка. Контроллер отдаёт команды,
// фактическое воспроизведение происходит на стороне клиента.
type Transport interface {
	Play() error
	Pause() error
	SetPosition(seconds float64) error
	SetVolume(volume float64) error
	SetMuted(muted bool) error
}

// Controller — состояние плеера. Не потокобезопасен: предполагается
// использование из одной горутины (обработчик страницы или тест).
type Controller struct {
	transport Transport

	playing  bool
	muted    bool
	volume   float64
	position float64
	duration float64
}

// NewController создаёт контроллер в начальном состоянии:
// пауза, полная громкость, нулевая позиция.
func NewController(t Transport) *Controller {
	return &Controller{
		transport: t,
		volume:    1.0,
	}
}

// Playing возвращает true, если воспроизведение запущено.
func (c *Controller) Playing() bool { return c.playing }

// Muted возвращает true, если звук выключен.
func (c *Controller) Muted() bool { return c.muted }

// Volume возвращает текущую громкость [0, 1].
func (c *Controller) Volume() float64 { return c.volume }

// Position возвращает текущую позицию в секундах.
func (c *Controller) Position() float64 { return c.position }

// Duration возвращает известную длительность дорожки в секундах.
func (c *Controller) Duration() float64 { return c.duration }

// Toggle переключает воспроизведение/паузу.
func (c *Controller) Toggle() error {
	if c.playing {
		if err := c.transport.Pause(); err != nil {
			return err
		}
		c.playing = false
		return nil
	}
	if err := c.transport.Play(); err != nil {
		return err
	}
	c.playing = true
	return nil
}

// Seek устанавливает позицию воспроизведения как долю длительности [0, 1].
// При неизвестной длительности команда игнорируется.
func (c *Controller) Seek(fraction float64) error {
	if c.duration <= 0 {
		return nil
	}
	fraction = clamp(fraction, 0, 1)
	pos := fraction * c.duration
	if err := c.transport.SetPosition(pos); err != nil {
		return err
	}
	c.position = pos
	return nil
}

// SetVolume устанавливает громкость [0, 1].
// Ненулевая громкость снимает mute.
func (c *Controller) SetVolume(v float64) error {
	v = clamp(v, 0, 1)
	if err := c.transport.SetVolume(v); err != nil {
		return err
	}
	c.volume = v
	if v > 0 && c.muted {
		if err := c.transport.SetMuted(false); err != nil {
			return err
		}
		c.muted = false
	}
	return nil
}

// ToggleMute переключает выключение звука.
func (c *Controller) ToggleMute() error {
	next := !c.muted
	if err := c.transport.SetMuted(next); err != nil {
		return err
	}
	c.muted = next
	return nil
}

// HandleTimeUpdate принимает событие текущей позиции от транспорта.
func (c *Controller) HandleTimeUpdate(seconds float64) {
	if !isFinite(seconds) || seconds < 0 {
		return
	}
	c.position = seconds
}

// HandleDurationChange принимает событие длительности от транспорта.
// Нечисловые значения (NaN, Inf до загрузки метаданных) игнорируются.
func (c *Controller) HandleDurationChange(seconds float64) {
	if !isFinite(seconds) || seconds < 0 {
		return
	}
	c.duration = seconds
}

// HandleEnded обрабатывает конец дорожки: воспроизведение
// останавливается, позиция сбрасывается в начало.
func (c *Controller) HandleEnded() {
	c.playing = false
	c.position = 0
}

// Progress возвращает прогресс воспроизведения [0, 1].
// При неизвестной длительности — 0.
func (c *Controller) Progress() float64 {
	if c.duration <= 0 {
		return 0
	}
	return clamp(c.position/c.duration, 0, 1)
}

// RingOffset возвращает stroke-dashoffset кольцевого индикатора:
// полная окружность при нулевом прогрессе, ноль при полном.
func (c *Controller) RingOffset() float64 {
	return RingCircumference * (1 - c.Progress())
}

// FormatTime форматирует секунды как "m:ss". Нечисловые и
// отрицательные значения отображаются как "0:00".
func FormatTime(seconds float64) string {
	if !isFinite(seconds) || seconds < 0 {
		return "0:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
