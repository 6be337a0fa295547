// Package guard — конвейеры проверок входящих сообщений.
//
// Для каждого типа сообщения задана упорядоченная цепочка проверок.
// Первая проверка, вернувшая не Continue, останавливает цепочку;
// если все прошли, выполняется коммит: запись применяется к миру и сессии,
// а сообщение пересылается по правилу типа.
//
// Guard не пишет в сеть: результат (исправления, сообщения, пересылка)
// возвращается вызывающему, который сам кодирует и отправляет кадры.
package guard

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/annel0/packetguard/internal/auth"
	"github.com/annel0/packetguard/internal/catalog"
	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/itembans"
	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/regions"
	"github.com/annel0/packetguard/internal/storage"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

// Notifier получает значимые события конвейера. Вызывается синхронно,
// реализация не должна блокироваться.
type Notifier interface {
	TileEdited(ctx context.Context, p *player.Player, e storage.JournalEntry)
	Disabled(ctx context.Context, p *player.Player, reason string)
	LoggedIn(ctx context.Context, p *player.Player)
}

// Deps — разделяемые коллабораторы конвейера.
type Deps struct {
	World      *world.World
	Regions    *regions.Manager
	Bans       *itembans.Registry
	Groups     *permissions.Registry
	Users      auth.UserRepository
	Characters storage.CharacterStore

	// Необязательные.
	Journal  *storage.EditJournal
	Notifier Notifier
}

// Guard — набор цепочек проверок по типам сообщений.
type Guard struct {
	cfg atomic.Pointer[config.GuardConfig]

	world   *world.World
	cat     *catalog.Catalog
	regions *regions.Manager
	bans    *itembans.Registry
	groups  *permissions.Registry
	users   auth.UserRepository
	chars   storage.CharacterStore
	journal *storage.EditJournal
	notify  Notifier

	chains map[protocol.Kind]runner
	log    *logging.Logger
}

// New собирает конвейер.
func New(cfg config.GuardConfig, d Deps) *Guard {
	g := &Guard{
		world:   d.World,
		cat:     d.World.Catalog(),
		regions: d.Regions,
		bans:    d.Bans,
		groups:  d.Groups,
		users:   d.Users,
		chars:   d.Characters,
		journal: d.Journal,
		notify:  d.Notifier,
		chains:  make(map[protocol.Kind]runner),
		log:     logging.GetGuardLogger(),
	}
	if g.regions == nil {
		g.regions = regions.NewManager(nil)
	}
	if g.bans == nil {
		g.bans = itembans.NewRegistry()
	}
	if g.groups == nil {
		g.groups = permissions.DefaultRegistry()
	}
	if g.chars == nil {
		g.chars = storage.NewMemoryCharacterStore()
	}
	g.SetConfig(cfg)

	g.registerTileChains()
	g.registerLiquidChain()
	g.registerProjectileChains()
	g.registerPlayerChains()
	g.registerCombatChains()
	g.registerObjectChains()
	return g
}

// Config возвращает текущую конфигурацию. Значения читаются на каждом сообщении.
func (g *Guard) Config() config.GuardConfig { return *g.cfg.Load() }

// SetConfig заменяет конфигурацию на лету.
func (g *Guard) SetConfig(cfg config.GuardConfig) {
	c := cfg
	g.cfg.Store(&c)
}

func (g *Guard) World() *world.World { return g.world }

// preAuth — типы, которые принимаются до завершения рукопожатия.
var preAuth = map[protocol.Kind]bool{
	protocol.KindPlayerInfo:          true,
	protocol.KindPlayerSlot:          true,
	protocol.KindContinueConnecting2: true,
	protocol.KindPasswordSend:        true,
	protocol.KindPlayerHp:            true,
	protocol.KindPlayerMana:          true,
	protocol.KindPlayerBuffs:         true,
}

// Handle проводит запись через цепочку ее типа.
// Вызывается только из горутины соединения p.
func (g *Guard) Handle(ctx context.Context, p *player.Player, rec protocol.Record) Result {
	kind := rec.Kind()
	switch kind {
	case protocol.KindContinueConnecting2:
		return g.handleConnecting(ctx, p)
	case protocol.KindPasswordSend:
		return g.handlePassword(ctx, p, rec.(*protocol.PasswordSend))
	}

	if p.State == player.StateDisconnected {
		return Result{Kind: kind, Outcome: Drop, Check: "gate", Reason: "connection closed"}
	}
	if !p.Authenticated() && !preAuth[kind] {
		return Result{Kind: kind, Outcome: Drop, Check: "gate", Reason: "not authenticated"}
	}

	c, ok := g.chains[kind]
	if !ok {
		// у входящего типа нет правил: ничего не применяем
		return Result{Kind: kind, Outcome: Drop, Check: "unhandled", Reason: "no pipeline for " + kind.String()}
	}
	return c.run(ctx, g, p, rec)
}

type runner interface {
	run(ctx context.Context, g *Guard, p *player.Player, rec protocol.Record) Result
}

type check[R protocol.Record] struct {
	name string
	fn   func(g *Guard, p *player.Player, r R) Verdict
}

// chain — цепочка проверок одного типа записи.
type chain[R protocol.Record] struct {
	// correct строит исправления по умолчанию для Reject/Fatal.
	correct func(g *Guard, p *player.Player, r R) []Correction
	checks  []check[R]
	commit  func(ctx context.Context, g *Guard, p *player.Player, r R) Result
}

func (c *chain[R]) run(ctx context.Context, g *Guard, p *player.Player, rec protocol.Record) Result {
	r, ok := rec.(R)
	if !ok {
		return Result{Kind: rec.Kind(), Outcome: Drop, Check: "type", Reason: fmt.Sprintf("unexpected record %T", rec)}
	}
	for _, ch := range c.checks {
		v := ch.fn(g, p, r)
		if v.Outcome == Continue {
			continue
		}
		if v.useDefault && c.correct != nil {
			v.Corrections = append(v.Corrections, c.correct(g, p, r)...)
		}
		return g.conclude(ctx, p, rec.Kind(), ch.name, v)
	}
	res := c.commit(ctx, g, p, r)
	res.Kind = rec.Kind()
	if res.Outcome == Continue {
		res.Outcome = Commit
	}
	return res
}

func register[R protocol.Record](g *Guard, kind protocol.Kind, c *chain[R]) {
	g.chains[kind] = c
}

// conclude превращает остановивший вердикт в результат: учитывает нарушения
// протокола и переводит соединение в Disabled для Fatal.
func (g *Guard) conclude(ctx context.Context, p *player.Player, kind protocol.Kind, name string, v Verdict) Result {
	res := Result{
		Kind:        kind,
		Outcome:     v.Outcome,
		Check:       name,
		Reason:      v.Reason,
		Corrections: v.Corrections,
		Notices:     v.Notices,
	}
	cfg := g.Config()

	if v.violation {
		p.Tracker.Increment(player.CounterProtocolViolation)
		total := p.Tracker.Total(player.CounterProtocolViolation)
		g.log.Debug("Нарушение протокола от %d (%s): %s [%d]", p.Index, kind, v.Reason, total)
		if cfg.ProtocolViolationLimit > 0 && total >= cfg.ProtocolViolationLimit {
			res.Outcome = Fatal
			res.Reason = "Repeated protocol violations: " + v.Reason
		}
	}

	switch res.Outcome {
	case Fatal:
		res.Disabled = g.disable(ctx, p, res.Reason)
		res.Notices = append(res.Notices, "You have been disabled: "+res.Reason)
	case Kick:
		g.log.Info("Соединение %d (%s) разрывается: %s", p.Index, p.IP, res.Reason)
	}
	return res
}

// disable переводит соединение в Disabled; true — впервые за сессию.
func (g *Guard) disable(ctx context.Context, p *player.Player, reason string) bool {
	first := p.Tracker.Disable(reason)
	if first {
		g.log.Warn("%s (%s, #%d) отключен: %s", displayName(p), p.IP, p.Index, reason)
		if g.notify != nil {
			g.notify.Disabled(ctx, p, reason)
		}
	} else {
		g.log.Debug("Повторная угроза от %s: %s", displayName(p), reason)
	}
	return first
}

func displayName(p *player.Player) string {
	if p.Name == "" {
		return fmt.Sprintf("#%d", p.Index)
	}
	return p.Name
}

// --- общие проверки ---

// ignoring — действия соединения сейчас не принимаются.
func (g *Guard) ignoring(p *player.Player) bool {
	cfg := g.Config()
	switch {
	case p.Ignoring():
		return true
	case cfg.RequireLogin && !p.LoggedIn:
		return true
	case cfg.PvPMode == config.PvPAlways && !p.Hostile:
		return true
	}
	return p.Tracker.Disabled()
}

// cooling — недавняя угроза или отключенное соединение.
// frozen — правки мира от соединения не принимаются: игнор, отключение или кулдаун.
func (g *Guard) frozen(p *player.Player) bool {
	return g.ignoring(p) || g.cooling(p)
}

func (g *Guard) cooling(p *player.Player) bool {
	return p.Tracker.Disabled() || p.Tracker.InCooldown(g.Config().ThreatCooldown)
}

// tileProtected проверяет права на правку клетки. Пустая строка — можно.
func (g *Guard) tileProtected(p *player.Player, x, y int) string {
	cfg := g.Config()
	if !p.HasPermission(permissions.CanBuild) {
		return "You do not have permission to build!"
	}
	if !g.regions.CanBuild(p, x, y) {
		return "This region is protected from changes."
	}
	if cfg.DisableBuild && !p.HasPermission(permissions.AntiBuild) {
		return "The world is protected from changes."
	}
	if cfg.SpawnProtection && !p.HasPermission(permissions.EditSpawn) {
		spawn := g.world.Spawn()
		if (vec.Vec2{X: x, Y: y}).Within(spawn, cfg.SpawnProtectionRadius) {
			return "Spawn is protected from changes."
		}
	}
	return ""
}

// outOfRange — клетка дальше r от последней известной позиции.
// r <= 0 — стандартная дистанция.
func (g *Guard) outOfRange(p *player.Player, x, y, r int) bool {
	cfg := g.Config()
	if !cfg.RangeChecks {
		return false
	}
	if r <= 0 {
		r = cfg.DefaultRange
	}
	return !p.Tile().Within(vec.Vec2{X: x, Y: y}, r)
}

// itemBanned — выбранный предмет запрещен для группы соединения.
func (g *Guard) itemBanned(p *player.Player, it catalog.Item) bool {
	if it.Name == "" || p.HasPermission(permissions.UseBannedItem) {
		return false
	}
	return g.bans.IsBanned(it.Name, p.Group)
}

func (g *Guard) selectedItem(p *player.Player) catalog.Item {
	return g.cat.Item(p.SelectedSlot().Type)
}

// identity — встроенный в запись индекс игрока совпадает с отправителем.
func identity(p *player.Player, id uint8) Verdict {
	if int(id) != p.Index {
		return violation("player index %d does not match connection %d", id, p.Index)
	}
	return pass
}

// journal записывает правку и сообщает о ней наблюдателю.
func (g *Guard) journalEdit(ctx context.Context, p *player.Player, kind string, pos vec.Vec2, before world.Cell) {
	e := storage.JournalEntry{
		At:      p.Now(),
		Player:  p.Index,
		Account: p.AccountName,
		Kind:    kind,
		Pos:     pos,
		Before:  before,
		After:   g.world.Cell(pos),
	}
	if g.journal != nil {
		seq, err := g.journal.Append(ctx, e)
		if err != nil {
			g.log.Error("Журнал правок: %v", err)
		}
		e.Seq = seq
	}
	if g.notify != nil {
		g.notify.TileEdited(ctx, p, e)
	}
}
