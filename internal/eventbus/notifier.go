package eventbus

import (
	"context"

	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/storage"
	"github.com/annel0/packetguard/internal/world"
)

// GuardNotifier публикует события конвейера проверок в шину.
// Ошибки публикации только логируются: обработка сообщения от шины не зависит.
type GuardNotifier struct {
	bus    EventBus
	source string
	log    *logging.Logger
}

func NewGuardNotifier(bus EventBus, source string) *GuardNotifier {
	return &GuardNotifier{bus: bus, source: source, log: logging.GetComponentLogger("eventbus")}
}

func cellFields(c world.Cell) map[string]any {
	return map[string]any{
		"active": c.Active,
		"type":   float64(c.Type),
		"style":  float64(c.Style),
		"wall":   float64(c.Wall),
		"liquid": float64(c.LiquidAmount),
	}
}

func (n *GuardNotifier) TileEdited(ctx context.Context, p *player.Player, e storage.JournalEntry) {
	n.publish(ctx, TypeTileEdited, PriorityLow, map[string]any{
		"seq":     float64(e.Seq),
		"player":  float64(e.Player),
		"account": e.Account,
		"kind":    e.Kind,
		"x":       float64(e.Pos.X),
		"y":       float64(e.Pos.Y),
		"before":  cellFields(e.Before),
		"after":   cellFields(e.After),
	})
}

func (n *GuardNotifier) Disabled(ctx context.Context, p *player.Player, reason string) {
	n.publish(ctx, TypeConnectionDisabled, PriorityCritical, map[string]any{
		"player":  float64(p.Index),
		"name":    p.Name,
		"ip":      p.IP,
		"account": p.AccountName,
		"reason":  reason,
	})
}

func (n *GuardNotifier) LoggedIn(ctx context.Context, p *player.Player) {
	group := ""
	if p.Group != nil {
		group = p.Group.Name
	}
	n.publish(ctx, TypePlayerLoggedIn, PriorityNormal, map[string]any{
		"player":  float64(p.Index),
		"name":    p.Name,
		"account": p.AccountName,
		"group":   group,
	})
}

// Connected и Left — жизненный цикл соединения, вызываются транспортом.
func (n *GuardNotifier) Connected(ctx context.Context, p *player.Player) {
	n.publish(ctx, TypePlayerConnected, PriorityLow, map[string]any{
		"player": float64(p.Index),
		"ip":     p.IP,
	})
}

func (n *GuardNotifier) Left(ctx context.Context, p *player.Player) {
	n.publish(ctx, TypePlayerLeft, PriorityLow, map[string]any{
		"player": float64(p.Index),
		"name":   p.Name,
	})
}

func (n *GuardNotifier) publish(ctx context.Context, eventType string, priority int, fields map[string]any) {
	ev, err := NewEnvelope(n.source, eventType, priority, fields)
	if err != nil {
		n.log.Error("Событие %s: %v", eventType, err)
		return
	}
	if err := n.bus.Publish(ctx, ev); err != nil {
		n.log.Warn("Публикация %s: %v", eventType, err)
	}
}
