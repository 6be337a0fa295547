// Package player — состояние одного соединения: авторизация, инвентарь,
// позиция, временное состояние команд, журналы правок и трекер аномалий.
//
// Player принадлежит горутине своего соединения. Конвейер читает и меняет его
// только при обработке сообщений этого же соединения; другие горутины видят
// лишь опубликованный снимок Status.
package player

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/vec"
)

// AuthState — состояние авторизации соединения.
type AuthState int

const (
	StateConnecting AuthState = iota
	StateAwaitingCredential
	StateAuthenticated
	StateDisconnected
)

func (s AuthState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingCredential:
		return "awaiting_credential"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InventorySize — число слотов инвентаря, включая экипировку и мусорку.
const InventorySize = 59

// Slot — предмет в слоте инвентаря.
type Slot struct {
	Type   int16 `json:"type"`
	Stack  int16 `json:"stack"`
	Prefix uint8 `json:"prefix"`
}

// Character — сохраняемые данные персонажа.
type Character struct {
	MaxHealth int16               `json:"max_health"`
	MaxMana   int16               `json:"max_mana"`
	Inventory [InventorySize]Slot `json:"inventory"`
}

// StoreSlot записывает слот; индекс вне диапазона игнорируется.
func (c *Character) StoreSlot(slot int, s Slot) {
	if slot >= 0 && slot < InventorySize {
		c.Inventory[slot] = s
	}
}

// Ignore — причина, по которой действия соединения игнорируются.
type Ignore int

const (
	IgnoreCheating Ignore = iota
	IgnoreInventory
	IgnoreTrashCan
)

// Player — сессия соединения.
type Player struct {
	Index int
	Name  string
	UUID  string
	IP    string

	State       AuthState
	LoggedIn    bool
	AccountID   int64
	AccountName string
	Group       *permissions.Group

	// Сервер запросил пароль и ждет PasswordSend.
	RequiresPassword bool
	ReceivedInfo     bool
	HasSentInventory bool

	Character    Character
	SelectedItem uint8
	ActiveChest  int // -1 — сундук не открыт
	Difficulty   uint8
	FirstMaxHP   int16
	FirstMaxMP   int16

	LastNetPosition vec.Vec2Float
	Spawned         bool
	Dead            bool
	Hostile         bool
	Team            uint8

	ignores map[Ignore]string

	// Временное состояние команд.
	AwaitingTempPoint  int // 0 — не ждем, иначе номер точки (1 или 2)
	TempPoints         [2]vec.Vec2
	AwaitingName       bool
	AwaitingNameParams []string

	TilesCreated   *EditLog
	TilesDestroyed *EditLog

	FuseUntil     time.Time // последний брошенный взрывной снаряд
	LastPvpChange time.Time
	LoginAt       time.Time
	ConnectedAt   time.Time

	Tracker *Tracker

	messages atomic.Uint64
	status   atomic.Pointer[Status]
	now      func() time.Time
}

// New создает сессию для соединения index. window — окно счетчиков аномалий.
func New(index int, ip string, group *permissions.Group, window time.Duration) *Player {
	p := &Player{
		Index:          index,
		IP:             ip,
		Group:          group,
		ignores:        make(map[Ignore]string),
		TilesCreated:   NewEditLog(),
		TilesDestroyed: NewEditLog(),
		Tracker:        NewTracker(window),
		ActiveChest:    -1,
		now:            time.Now,
	}
	p.ConnectedAt = p.now()
	p.PublishStatus()
	return p
}

// SetClock подменяет источник времени сессии и трекера.
func (p *Player) SetClock(now func() time.Time) {
	p.now = now
	p.Tracker.SetClock(now)
}

// Now — текущее время по часам сессии.
func (p *Player) Now() time.Time { return p.now() }

// HasPermission проверяет право группы соединения.
func (p *Player) HasPermission(perm string) bool {
	return p.Group.HasPermission(perm)
}

// Authenticated — рукопожатие завершено.
func (p *Player) Authenticated() bool { return p.State == StateAuthenticated }

// SetIgnore начинает игнорировать действия по причине kind.
func (p *Player) SetIgnore(kind Ignore, reason string) {
	p.ignores[kind] = reason
}

func (p *Player) ClearIgnore(kind Ignore) {
	delete(p.ignores, kind)
}

func (p *Player) IsIgnoring(kind Ignore) bool {
	_, ok := p.ignores[kind]
	return ok
}

// Ignoring — действия соединения игнорируются хотя бы по одной причине.
func (p *Player) Ignoring() bool { return len(p.ignores) > 0 }

// IgnoreMessage — текст для игрока, по первой причине в порядке важности.
func (p *Player) IgnoreMessage() string {
	if r, ok := p.ignores[IgnoreCheating]; ok {
		return "Disabled for cheating: " + r
	}
	if r, ok := p.ignores[IgnoreInventory]; ok {
		return "Disabled for Server Side Inventory: " + r
	}
	if _, ok := p.ignores[IgnoreTrashCan]; ok {
		return "You need to rejoin to ensure your trash can is cleared!"
	}
	return ""
}

// SelectedSlot возвращает выбранный предмет.
func (p *Player) SelectedSlot() Slot {
	if int(p.SelectedItem) >= InventorySize {
		return Slot{}
	}
	return p.Character.Inventory[p.SelectedItem]
}

// Tile — клетка последней подтвержденной позиции.
func (p *Player) Tile() vec.Vec2 { return p.LastNetPosition.ToTile() }

// Login привязывает учетную запись к соединению.
func (p *Player) Login(accountID int64, account string, group *permissions.Group) {
	p.LoggedIn = true
	p.AccountID = accountID
	p.AccountName = account
	p.Group = group
	p.LoginAt = p.now()
}

// CountMessage учитывает обработанное сообщение.
func (p *Player) CountMessage() uint64 { return p.messages.Add(1) }

// Disconnect — терминальное состояние.
func (p *Player) Disconnect() {
	p.State = StateDisconnected
	p.PublishStatus()
}
