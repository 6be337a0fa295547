package hooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/protocol"
)

func tileEvent() *Event {
	return &Event{Kind: protocol.KindTile, Sender: 1, Record: &protocol.Tile{X: 1, Y: 2}}
}

func TestInvokeOrderAndHandled(t *testing.T) {
	r := NewRegistry(time.Second, 3)
	var calls []string
	r.Register(protocol.KindTile, "first", func(ev *Event) { calls = append(calls, "first") })
	r.Register(protocol.KindTile, "second", func(ev *Event) {
		calls = append(calls, "second")
		ev.Handled = true
	})
	r.Register(protocol.KindTile, "third", func(ev *Event) { calls = append(calls, "third") })

	assert.True(t, r.Invoke(tileEvent()))
	assert.Equal(t, []string{"first", "second"}, calls, "после Handled остальные не вызываются")
}

func TestInvokeWithoutSubscribers(t *testing.T) {
	r := NewRegistry(time.Second, 3)
	assert.False(t, r.Invoke(tileEvent()))
}

func TestSubscriberMayMutateRecord(t *testing.T) {
	r := NewRegistry(time.Second, 3)
	On(r, "rewrite", func(rec *protocol.Tile, ev *Event) { rec.Style = 7 })
	ev := tileEvent()
	r.Invoke(ev)
	assert.Equal(t, uint8(7), ev.Record.(*protocol.Tile).Style)
}

func TestTypedHelperIgnoresOtherKinds(t *testing.T) {
	r := NewRegistry(time.Second, 3)
	called := false
	On(r, "liquid", func(rec *protocol.LiquidSet, ev *Event) { called = true })
	r.Invoke(tileEvent())
	assert.False(t, called)
	r.Invoke(&Event{Kind: protocol.KindLiquidSet, Record: &protocol.LiquidSet{}})
	assert.True(t, called)
}

func TestUnsubscribe(t *testing.T) {
	r := NewRegistry(time.Second, 3)
	n := 0
	off := r.Register(protocol.KindTile, "x", func(ev *Event) { n++ })
	r.Invoke(tileEvent())
	off()
	off()
	r.Invoke(tileEvent())
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, r.Count(protocol.KindTile))
}

func TestPanickingSubscriberIsIsolatedAndSuspended(t *testing.T) {
	r := NewRegistry(time.Second, 2)
	after := 0
	r.Register(protocol.KindTile, "boom", func(ev *Event) { panic("boom") })
	r.Register(protocol.KindTile, "after", func(ev *Event) { after++ })

	require.NotPanics(t, func() { r.Invoke(tileEvent()) })
	require.NotPanics(t, func() { r.Invoke(tileEvent()) })
	r.Invoke(tileEvent())
	assert.Equal(t, 3, after, "следующие подписчики продолжают работать")
	assert.Equal(t, 1, r.Count(protocol.KindTile), "паникующий подписчик отключен")

	require.NoError(t, r.Resume(protocol.KindTile, "boom"))
	assert.Equal(t, 2, r.Count(protocol.KindTile))
	assert.Error(t, r.Resume(protocol.KindTile, "nope"))
}

func TestSlowSubscriberIsSuspended(t *testing.T) {
	r := NewRegistry(50*time.Millisecond, 2)
	clock := time.Unix(0, 0)
	r.now = func() time.Time { return clock }
	r.Register(protocol.KindTile, "slow", func(ev *Event) { clock = clock.Add(100 * time.Millisecond) })

	r.Invoke(tileEvent())
	assert.Equal(t, 1, r.Count(protocol.KindTile))
	r.Invoke(tileEvent())
	assert.Equal(t, 0, r.Count(protocol.KindTile))

	infos := r.Subscribers()
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Suspended)
	assert.Equal(t, 2, infos[0].Failures)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	r := NewRegistry(time.Second, 2)
	fail := true
	r.Register(protocol.KindTile, "flaky", func(ev *Event) {
		if fail {
			panic("x")
		}
	})
	r.Invoke(tileEvent())
	fail = false
	r.Invoke(tileEvent())
	fail = true
	r.Invoke(tileEvent())
	assert.Equal(t, 1, r.Count(protocol.KindTile), "сбои не подряд не отключают")
}
