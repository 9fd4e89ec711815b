package playback

import (
	"errors"
	"math"
	"testing"
)

// fakeTransport записывает команды контроллера.
type fakeTransport struct {
	playCalls  int
	pauseCalls int
	position   float64
	volume     float64
	muted      bool
	failNext   error
}

func (f *fakeTransport) check() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeTransport) Play() error {
	if err := f.check(); err != nil {
		return err
	}
	f.playCalls++
	return nil
}

func (f *fakeTransport) Pause() error {
	if err := f.check(); err != nil {
		return err
	}
	f.pauseCalls++
	return nil
}

func (f *fakeTransport) SetPosition(s float64) error {
	if err := f.check(); err != nil {
		return err
	}
	f.position = s
	return nil
}

func (f *fakeTransport) SetVolume(v float64) error {
	if err := f.check(); err != nil {
		return err
	}
	f.volume = v
	return nil
}

func (f *fakeTransport) SetMuted(m bool) error {
	if err := f.check(); err != nil {
		return err
	}
	f.muted = m
	return nil
}

func TestControllerInitialState(t *testing.T) {
	c := NewController(&fakeTransport{})

	if c.Playing() {
		t.Error("Playing() = true, ожидается пауза в начальном состоянии")
	}
	if c.Muted() {
		t.Error("Muted() = true, ожидается false")
	}
	if c.Volume() != 1.0 {
		t.Errorf("Volume() = %v, ожидается 1.0", c.Volume())
	}
	if c.Progress() != 0 {
		t.Errorf("Progress() = %v, ожидается 0", c.Progress())
	}
}

func TestControllerToggle(t *testing.T) {
	tr := &fakeTransport{}
	c := NewController(tr)

	if err := c.Toggle(); err != nil {
		t.Fatalf("Toggle() ошибка: %v", err)
	}
	if !c.Playing() || tr.playCalls != 1 {
		t.Errorf("после Toggle: playing=%v, playCalls=%d", c.Playing(), tr.playCalls)
	}

	if err := c.Toggle(); err != nil {
		t.Fatalf("Toggle() ошибка: %v", err)
	}
	if c.Playing() || tr.pauseCalls != 1 {
		t.Errorf("после второго Toggle: playing=%v, pauseCalls=%d", c.Playing(), tr.pauseCalls)
	}
}

func TestControllerToggle_TransportFailure(t *testing.T) {
	tr := &fakeTransport{failNext: errors.New("транспорт недоступен")}
	c := NewController(tr)

	if err := c.Toggle(); err == nil {
		t.Fatal("Toggle() = nil, ожидается ошибка")
	}
	// Состояние не меняется при ошибке транспорта
	if c.Playing() {
		t.Error("Playing() = true после ошибки транспорта")
	}
}

func TestControllerSeek(t *testing.T) {
	tr := &fakeTransport{}
	c := NewController(tr)

	// Без известной длительности Seek игнорируется
	if err := c.Seek(0.5); err != nil {
		t.Fatalf("Seek() ошибка: %v", err)
	}
	if c.Position() != 0 {
		t.Errorf("Position() = %v, ожидается 0 (длительность неизвестна)", c.Position())
	}

	c.HandleDurationChange(200)

	if err := c.Seek(0.25); err != nil {
		t.Fatalf("Seek() ошибка: %v", err)
	}
	if c.Position() != 50 {
		t.Errorf("Position() = %v, ожидается 50", c.Position())
	}
	if tr.position != 50 {
		t.Errorf("transport.position = %v, ожидается 50", tr.position)
	}

	// Доля за пределами [0, 1] ограничивается
	if err := c.Seek(1.5); err != nil {
		t.Fatalf("Seek() ошибка: %v", err)
	}
	if c.Position() != 200 {
		t.Errorf("Position() = %v, ожидается 200", c.Position())
	}
}

func TestControllerVolumeAndMute(t *testing.T) {
	tr := &fakeTransport{}
	c := NewController(tr)

	if err := c.ToggleMute(); err != nil {
		t.Fatalf("ToggleMute() ошибка: %v", err)
	}
	if !c.Muted() || !tr.muted {
		t.Error("mute не включился")
	}

	// Ненулевая громкость снимает mute
	if err := c.SetVolume(0.7); err != nil {
		t.Fatalf("SetVolume() ошибка: %v", err)
	}
	if c.Muted() {
		t.Error("Muted() = true после SetVolume(0.7), ожидается снятие mute")
	}
	if c.Volume() != 0.7 {
		t.Errorf("Volume() = %v, ожидается 0.7", c.Volume())
	}

	// Нулевая громкость mute не трогает
	if err := c.ToggleMute(); err != nil {
		t.Fatalf("ToggleMute() ошибка: %v", err)
	}
	if err := c.SetVolume(0); err != nil {
		t.Fatalf("SetVolume() ошибка: %v", err)
	}
	if !c.Muted() {
		t.Error("Muted() = false после SetVolume(0), mute должен сохраниться")
	}

	// Громкость ограничивается диапазоном [0, 1]
	if err := c.SetVolume(2.5); err != nil {
		t.Fatalf("SetVolume() ошибка: %v", err)
	}
	if c.Volume() != 1.0 {
		t.Errorf("Volume() = %v, ожидается 1.0", c.Volume())
	}
}

func TestControllerProgress(t *testing.T) {
	c := NewController(&fakeTransport{})

	// Неизвестная длительность — нулевой прогресс
	c.HandleTimeUpdate(42)
	if c.Progress() != 0 {
		t.Errorf("Progress() = %v, ожидается 0 при нулевой длительности", c.Progress())
	}

	c.HandleDurationChange(100)
	c.HandleTimeUpdate(25)
	if c.Progress() != 0.25 {
		t.Errorf("Progress() = %v, ожидается 0.25", c.Progress())
	}

	// Нечисловая длительность игнорируется
	c.HandleDurationChange(math.NaN())
	if c.Duration() != 100 {
		t.Errorf("Duration() = %v, NaN должен игнорироваться", c.Duration())
	}
	c.HandleDurationChange(math.Inf(1))
	if c.Duration() != 100 {
		t.Errorf("Duration() = %v, Inf должен игнорироваться", c.Duration())
	}
}

func TestControllerRingOffset(t *testing.T) {
	c := NewController(&fakeTransport{})

	// Нулевой прогресс — полная окружность
	if got := c.RingOffset(); math.Abs(got-RingCircumference) > 1e-9 {
		t.Errorf("RingOffset() = %v, ожидается %v", got, RingCircumference)
	}

	c.HandleDurationChange(100)
	c.HandleTimeUpdate(50)
	want := RingCircumference * 0.5
	if got := c.RingOffset(); math.Abs(got-want) > 1e-9 {
		t.Errorf("RingOffset() = %v, ожидается %v", got, want)
	}

	c.HandleTimeUpdate(100)
	if got := c.RingOffset(); math.Abs(got) > 1e-9 {
		t.Errorf("RingOffset() = %v, ожидается 0", got)
	}
}

func TestControllerHandleEnded(t *testing.T) {
	tr := &fakeTransport{}
	c := NewController(tr)
	c.HandleDurationChange(100)

	if err := c.Toggle(); err != nil {
		t.Fatalf("Toggle() ошибка: %v", err)
	}
	c.HandleTimeUpdate(100)

	c.HandleEnded()
	if c.Playing() {
		t.Error("Playing() = true после конца дорожки")
	}
	if c.Position() != 0 {
		t.Errorf("Position() = %v, ожидается 0 после конца дорожки", c.Position())
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{75.9, "1:15"},
		{600, "10:00"},
		{-1, "0:00"},
		{math.NaN(), "0:00"},
		{math.Inf(1), "0:00"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.seconds); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, ожидается %q", tt.seconds, got, tt.want)
		}
	}
}
