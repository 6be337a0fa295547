package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
)

func TestEnvelopePayloadRoundTrip(t *testing.T) {
	ev, err := NewEnvelope("node-1", TypeConnectionDisabled, PriorityCritical, map[string]any{
		"player": float64(3),
		"reason": "Reached TileKill threshold.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Version)

	fields, err := ev.Fields()
	require.NoError(t, err)
	assert.Equal(t, float64(3), fields["player"])
	assert.Equal(t, "Reached TileKill threshold.", fields["reason"])
}

func TestMemoryBusFiltersByType(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	got := make(chan *Envelope, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{Types: []string{TypeConnectionDisabled}}, func(ctx context.Context, ev *Envelope) {
		got <- ev
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	n := NewGuardNotifier(bus, "test")
	p := player.New(1, "10.0.0.1", permissions.DefaultRegistry().Guest(), time.Second)
	n.Connected(context.Background(), p)
	n.Disabled(context.Background(), p, "Reached projectile update threshold.")

	select {
	case ev := <-got:
		assert.Equal(t, TypeConnectionDisabled, ev.EventType)
		fields, err := ev.Fields()
		require.NoError(t, err)
		assert.Equal(t, "Reached projectile update threshold.", fields["reason"])
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}

	assert.Eventually(t, func() bool { return bus.Metrics().Published == 2 }, time.Second, 10*time.Millisecond)
	select {
	case ev := <-got:
		t.Fatalf("лишнее событие %s", ev.EventType)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusDropsLowPriorityWhenFull(t *testing.T) {
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, 1),
		done:        make(chan struct{}),
	}
	// без dispatchLoop буфер не разгружается
	require.NoError(t, mb.Publish(context.Background(), &Envelope{Priority: PriorityLow}))
	require.NoError(t, mb.Publish(context.Background(), &Envelope{Priority: PriorityLow}))
	assert.Equal(t, uint64(1), mb.Metrics().Dropped)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mb.Publish(ctx, &Envelope{Priority: PriorityCritical})
	assert.ErrorIs(t, err, context.Canceled, "важное событие ждет места, а не теряется")

	require.NoError(t, mb.Close())
	assert.ErrorIs(t, mb.Publish(context.Background(), &Envelope{}), ErrClosed)
}

func TestMetricsExporterAddsDeltas(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	ev, err := NewEnvelope("test", TypePlayerLeft, PriorityLow, map[string]any{"player": float64(0)})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))

	prev := me.collect(Stats{})
	assert.Equal(t, float64(1), testutil.ToFloat64(me.published))
	me.collect(prev)
	assert.Equal(t, float64(1), testutil.ToFloat64(me.published), "повторный сбор не удваивает счетчик")
}
