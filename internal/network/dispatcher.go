package network

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/packetguard/internal/guard"
	"github.com/annel0/packetguard/internal/hooks"
	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
)

// Dispatcher проводит кадр через разбор, подписчиков, конвейер и пересылку.
// Ошибка любого шага ограничена текущим сообщением.
type Dispatcher struct {
	guard   *guard.Guard
	hooks   *hooks.Registry
	relay   *Relay
	metrics *Metrics
	tracer  trace.Tracer
	log     *logging.Logger
}

// NewDispatcher собирает диспетчер. hooks и m могут быть nil.
func NewDispatcher(g *guard.Guard, h *hooks.Registry, relay *Relay, m *Metrics) *Dispatcher {
	if h == nil {
		cfg := g.Config()
		h = hooks.NewRegistry(cfg.HookSlowThreshold, cfg.HookMaxFailures)
	}
	return &Dispatcher{
		guard:   g,
		hooks:   h,
		relay:   relay,
		metrics: m,
		tracer:  otel.Tracer("packetguard/network"),
		log:     logging.GetNetworkLogger(),
	}
}

func (d *Dispatcher) Hooks() *hooks.Registry { return d.hooks }

// Handle обрабатывает один кадр соединения p. Вызывается только из горутины p,
// поэтому сообщения одного соединения проходят строго по порядку.
func (d *Dispatcher) Handle(ctx context.Context, p *player.Player, f protocol.Frame) (res guard.Result) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "packet."+f.Kind.String(),
		trace.WithAttributes(
			attribute.Int("player.index", p.Index),
			attribute.Int("frame.size", len(f.Payload)),
		))
	defer func() {
		if rec := recover(); rec != nil {
			d.metrics.recovered()
			d.log.Error("Паника при обработке %s от %d: %v\n%s", f.Kind, p.Index, rec, debug.Stack())
			span.SetStatus(codes.Error, "panic")
			res = guard.Result{Kind: f.Kind, Outcome: guard.Drop, Check: "panic", Reason: fmt.Sprint(rec)}
		}
		d.metrics.result(res, time.Since(start))
		span.SetAttributes(
			attribute.String("guard.outcome", res.Outcome.String()),
			attribute.String("guard.check", res.Check),
		)
		span.End()
		p.PublishStatus()
	}()

	p.CountMessage()
	d.metrics.frame(f)

	rec, err := protocol.Decode(f.Kind, f.Payload)
	if err != nil {
		d.metrics.decodeError(f.Kind)
		logging.LogProtocolError(d.log, p.Index, err, f.Payload)
		span.RecordError(err)
		return guard.Result{Kind: f.Kind, Outcome: guard.Drop, Check: "decode", Reason: err.Error()}
	}

	// Подписчики видят весь трафик, в том числе от отключенных соединений.
	ev := &hooks.Event{Kind: f.Kind, Sender: p.Index, Record: rec}
	if d.hooks.Invoke(ev) {
		d.metrics.hookHandled(f.Kind)
		return guard.Result{Kind: f.Kind, Outcome: guard.Drop, Check: "hook", Reason: "handled by subscriber"}
	}

	res = d.guard.Handle(ctx, p, ev.Record)
	switch res.Outcome {
	case guard.Fatal:
		span.SetStatus(codes.Error, res.Reason)
	case guard.Reject, guard.Drop:
		if res.Check != "" {
			d.log.Debug("%s от %d: %s (%s) %s", f.Kind, p.Index, res.Outcome, res.Check, res.Reason)
		}
	}

	if d.relay != nil {
		d.relay.Deliver(p, ev.Record, res)
	}
	return res
}
