package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func TestThresholdFatalOnAttemptAfterLimit(t *testing.T) {
	clock := newClock()
	tr := NewTracker(time.Second)
	tr.SetClock(clock.now)

	const limit = 10
	for i := 1; i <= limit; i++ {
		require.False(t, tr.Exceeds(CounterTileKill, limit), "попытка %d", i)
		tr.Increment(CounterTileKill)
	}
	assert.True(t, tr.Exceeds(CounterTileKill, limit), "11-я попытка превышает порог")
	assert.False(t, tr.Exceeds(CounterTilePlace, limit), "счетчики независимы")
	assert.False(t, tr.Exceeds(CounterTileKill, 0), "нулевой лимит — без ограничения")
}

func TestWindowResetsButTotalsAreMonotonic(t *testing.T) {
	clock := newClock()
	tr := NewTracker(time.Second)
	tr.SetClock(clock.now)

	prev := 0
	for i := 0; i < 25; i++ {
		tr.Increment(CounterProjectile)
		clock.advance(100 * time.Millisecond)
		total := tr.Total(CounterProjectile)
		assert.GreaterOrEqual(t, total, prev)
		prev = total
	}
	assert.Equal(t, 25, tr.Total(CounterProjectile))
	assert.Less(t, tr.Window(CounterProjectile), 11, "окно сбрасывается")

	clock.advance(2 * time.Second)
	assert.Equal(t, 0, tr.Window(CounterProjectile))
	assert.Equal(t, 25, tr.Total(CounterProjectile))
}

func TestDisableIsOneWayAndKeepsFirstReason(t *testing.T) {
	clock := newClock()
	tr := NewTracker(time.Second)
	tr.SetClock(clock.now)

	assert.False(t, tr.InCooldown(5*time.Second))
	assert.True(t, tr.Disable("Reached TileKill threshold."))
	clock.advance(3 * time.Second)
	assert.False(t, tr.Disable("Using banned item"))

	assert.True(t, tr.Disabled())
	assert.Equal(t, "Reached TileKill threshold.", tr.Reason())
	assert.Equal(t, clock.t, tr.LastThreat(), "повторный Disable продлевает охлаждение")
	assert.True(t, tr.InCooldown(5*time.Second))

	clock.advance(6 * time.Second)
	assert.False(t, tr.InCooldown(5*time.Second))
	assert.True(t, tr.Disabled(), "отключение не снимается со временем")
}

func TestSnapshot(t *testing.T) {
	tr := NewTracker(time.Second)
	tr.Increment(CounterTileLiquid)
	s := tr.Snapshot()
	assert.Equal(t, CounterStatus{Total: 1, Window: 1}, s.Counters["tile_liquid"])
	assert.Len(t, s.Counters, len(Counters()))
}

func TestEditLogKeepsFirstCell(t *testing.T) {
	l := NewEditLog()
	p := vec.Vec2{X: 1, Y: 2}
	assert.True(t, l.Record(p, world.Cell{Active: true, Type: 1}))
	assert.False(t, l.Record(p, world.Cell{}))
	l.Record(vec.Vec2{X: 3, Y: 4}, world.Cell{})

	c, ok := l.Before(p)
	require.True(t, ok)
	assert.Equal(t, uint16(1), c.Type)
	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, p, entries[0].Pos)
}

func TestIgnores(t *testing.T) {
	p := New(1, "127.0.0.1", permissions.DefaultRegistry().Guest(), time.Second)
	assert.False(t, p.Ignoring())
	p.SetIgnore(IgnoreInventory, "Banned item")
	p.SetIgnore(IgnoreCheating, "Item stack hack")
	assert.Equal(t, "Disabled for cheating: Item stack hack", p.IgnoreMessage())
	p.ClearIgnore(IgnoreCheating)
	assert.Equal(t, "Disabled for Server Side Inventory: Banned item", p.IgnoreMessage())
	assert.True(t, p.Ignoring())
}

func TestStatusPublish(t *testing.T) {
	reg := permissions.DefaultRegistry()
	clock := newClock()
	p := New(3, "10.0.0.1", reg.Guest(), time.Second)
	p.SetClock(clock.now)
	require.NotNil(t, p.Status())
	assert.Equal(t, "connecting", p.Status().State)

	p.Name = "Alice"
	p.State = StateAuthenticated
	p.Login(7, "alice", reg.Get("admin"))
	p.Tracker.Disable("Hacked Client Detected.")
	p.CountMessage()

	old := p.Status()
	assert.Equal(t, "", old.Name, "старый снимок не меняется")

	p.PublishStatus()
	s := p.Status()
	assert.Equal(t, "Alice", s.Name)
	assert.Equal(t, "admin", s.Group)
	assert.True(t, s.LoggedIn)
	assert.True(t, s.Tracker.Disabled)
	assert.Equal(t, uint64(1), s.Messages)
	assert.Equal(t, clock.t, p.LoginAt)
}

func TestSelectedSlot(t *testing.T) {
	p := New(1, "", nil, time.Second)
	p.Character.StoreSlot(3, Slot{Type: 1, Stack: 1})
	p.Character.StoreSlot(500, Slot{Type: 2})
	p.SelectedItem = 3
	assert.Equal(t, int16(1), p.SelectedSlot().Type)
	p.SelectedItem = 200
	assert.Equal(t, Slot{}, p.SelectedSlot())
	assert.False(t, p.HasPermission(permissions.CanBuild), "без группы прав нет")
}
