package player

import (
	"sync"
	"time"
)

// Counter — категория подозрительных действий.
type Counter int

const (
	CounterTileKill Counter = iota
	CounterTilePlace
	CounterTileLiquid
	CounterProjectile
	CounterProtocolViolation

	numCounters
)

func (c Counter) String() string {
	switch c {
	case CounterTileKill:
		return "tile_kill"
	case CounterTilePlace:
		return "tile_place"
	case CounterTileLiquid:
		return "tile_liquid"
	case CounterProjectile:
		return "projectile"
	case CounterProtocolViolation:
		return "protocol_violation"
	default:
		return "unknown"
	}
}

// Counters перечисляет все категории.
func Counters() []Counter {
	out := make([]Counter, 0, numCounters)
	for c := Counter(0); c < numCounters; c++ {
		out = append(out, c)
	}
	return out
}

type windowCount struct {
	start time.Time
	n     int
}

// Tracker — счетчики аномалий и состояние отключения одного соединения.
//
// У каждого счетчика есть монотонный итог за сессию и счет в текущем окне,
// с которым сравнивается порог. Единственный переход — Trusted → Disabled;
// обратного пути в рамках сессии нет.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time

	totals  [numCounters]int
	windows [numCounters]windowCount

	lastThreat time.Time
	disabled   bool
	reason     string
	disabledAt time.Time
}

// NewTracker создает трекер с окном подсчета window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{window: window, now: time.Now}
}

// SetClock подменяет источник времени.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// roll сбрасывает счет окна, если оно истекло.
func (t *Tracker) roll(c Counter, now time.Time) *windowCount {
	w := &t.windows[c]
	if w.start.IsZero() || (t.window > 0 && now.Sub(w.start) >= t.window) {
		w.start = now
		w.n = 0
	}
	return w
}

// Exceeds сообщает, достиг ли счет окна лимита. Вызывается до Increment,
// поэтому при лимите 10 фатальной оказывается 11-я попытка.
// Лимит <= 0 означает «без ограничения».
func (t *Tracker) Exceeds(c Counter, limit int) bool {
	if limit <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roll(c, t.now()).n >= limit
}

// Increment увеличивает счетчик и возвращает счет окна.
func (t *Tracker) Increment(c Counter) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.roll(c, t.now())
	w.n++
	t.totals[c]++
	return w.n
}

// Window — счет в текущем окне.
func (t *Tracker) Window(c Counter) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roll(c, t.now()).n
}

// Total — итог за сессию, не убывает.
func (t *Tracker) Total(c Counter) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals[c]
}

// Disable переводит соединение в Disabled. Первая причина сохраняется;
// LastThreat обновляется при каждом вызове. Возвращает true при первом отключении.
func (t *Tracker) Disable(reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.lastThreat = now
	if t.disabled {
		return false
	}
	t.disabled = true
	t.reason = reason
	t.disabledAt = now
	return true
}

// MarkThreat продлевает охлаждение без отключения.
func (t *Tracker) MarkThreat() {
	t.mu.Lock()
	t.lastThreat = t.now()
	t.mu.Unlock()
}

func (t *Tracker) Disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disabled
}

func (t *Tracker) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

func (t *Tracker) LastThreat() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastThreat
}

// InCooldown — с последней угрозы прошло меньше d.
func (t *Tracker) InCooldown(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.lastThreat.IsZero() && t.now().Sub(t.lastThreat) < d
}

// CounterStatus — значения одного счетчика для снимка.
type CounterStatus struct {
	Total  int `json:"total"`
	Window int `json:"window"`
}

// TrackerSnapshot — копия состояния трекера.
type TrackerSnapshot struct {
	Counters      map[string]CounterStatus `json:"counters"`
	Disabled      bool                     `json:"disabled"`
	DisableReason string                   `json:"disable_reason,omitempty"`
	DisabledAt    time.Time                `json:"disabled_at,omitempty"`
	LastThreat    time.Time                `json:"last_threat,omitempty"`
}

func (t *Tracker) Snapshot() TrackerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	s := TrackerSnapshot{
		Counters:      make(map[string]CounterStatus, numCounters),
		Disabled:      t.disabled,
		DisableReason: t.reason,
		DisabledAt:    t.disabledAt,
		LastThreat:    t.lastThreat,
	}
	for c := Counter(0); c < numCounters; c++ {
		s.Counters[c.String()] = CounterStatus{Total: t.totals[c], Window: t.roll(c, now).n}
	}
	return s
}
