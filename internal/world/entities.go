package world

import (
	"errors"
	"sort"

	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
)

var (
	ErrChestLimit  = errors.New("world: достигнут лимит сундуков")
	ErrChestExists = errors.New("world: на клетке уже есть сундук")
	ErrNoChest     = errors.New("world: сундук не найден")
	ErrBadSlot     = errors.New("world: некорректный слот")
	ErrSignLimit   = errors.New("world: достигнут лимит табличек")
)

// MaxSigns — максимум табличек в мире.
const MaxSigns = 1000

// Avatar — видимое представление подключенного игрока.
type Avatar struct {
	Index      int
	Name       string
	Pos        vec.Vec2Float
	Vel        vec.Vec2Float
	Hostile    bool
	Team       uint8
	Life       int16
	LifeMax    int16
	Mana       int16
	ManaMax    int16
	Dead       bool
	Buffs      [protocol.MaxBuffs]uint8
	Difficulty uint8
}

// Tile — клетка, в которой стоит аватар.
func (a Avatar) Tile() vec.Vec2 { return a.Pos.ToTile() }

// ProjectileKey — составной ключ снаряда: идентификатор и индекс владельца.
type ProjectileKey struct {
	Ident int16
	Owner uint8
}

type Projectile struct {
	Key       ProjectileKey
	Type      int16
	Pos       vec.Vec2Float
	Vel       vec.Vec2Float
	Knockback float32
	Damage    int16
}

type ChestItem struct {
	Type   int16
	Stack  int16
	Prefix uint8
}

// Chest занимает 2×2 клетки, X/Y — левый верхний угол.
type Chest struct {
	ID    int
	X, Y  int
	Items []ChestItem
}

type Sign struct {
	ID   int
	X, Y int
	Text string
}

type NPC struct {
	ID       int
	Type     int16
	Name     string
	Town     bool
	Active   bool
	Pos      vec.Vec2Float
	Life     int32
	LifeMax  int32
	HomeX    int16
	HomeY    int16
	Homeless bool
}

type DroppedItem struct {
	ID     int
	Type   int16
	Stack  int16
	Prefix uint8
	Pos    vec.Vec2Float
	Vel    vec.Vec2Float
}

// --- аватары ---

// JoinAvatar добавляет или заменяет аватар с индексом a.Index.
func (w *World) JoinAvatar(a Avatar) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := a
	w.avatars[a.Index] = &cp
}

func (w *World) Avatar(index int) (Avatar, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.avatars[index]
	if !ok {
		return Avatar{}, false
	}
	return *a, true
}

// UpdateAvatar изменяет аватар под блокировкой; false, если его нет.
func (w *World) UpdateAvatar(index int, fn func(*Avatar)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.avatars[index]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// Avatars возвращает копии всех аватаров по возрастанию индекса.
func (w *World) Avatars() []Avatar {
	w.mu.RLock()
	out := make([]Avatar, 0, len(w.avatars))
	for _, a := range w.avatars {
		out = append(out, *a)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// RemoveConnection убирает аватар и все снаряды соединения. Возвращает число снарядов.
func (w *World) RemoveConnection(index int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.avatars, index)
	removed := 0
	for k := range w.projectiles {
		if int(k.Owner) == index {
			delete(w.projectiles, k)
			removed++
		}
	}
	return removed
}

// --- снаряды ---

// UpsertProjectile создает или обновляет снаряд по ключу; true — создан новый.
func (w *World) UpsertProjectile(p Projectile) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.projectiles[p.Key]; ok {
		*cur = p
		return false
	}
	cp := p
	w.projectiles[p.Key] = &cp
	return true
}

func (w *World) Projectile(key ProjectileKey) (Projectile, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.projectiles[key]
	if !ok {
		return Projectile{}, false
	}
	return *p, true
}

func (w *World) RemoveProjectile(key ProjectileKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.projectiles[key]
	delete(w.projectiles, key)
	return ok
}

func (w *World) ProjectileCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.projectiles)
}

// --- сундуки ---

// AddChest ставит сундук с углом в (x, y).
func (w *World) AddChest(x, y int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.findChestLocked(x, y); ok {
		return 0, ErrChestExists
	}
	if len(w.chests) >= w.maxChests {
		return 0, ErrChestLimit
	}
	id := w.nextChest
	for w.chests[id] != nil {
		id++
	}
	w.nextChest = id + 1
	w.chests[id] = &Chest{ID: id, X: x, Y: y, Items: make([]ChestItem, w.cat.Limits.MaxChestItems)}
	w.chestAt[vec.Vec2{X: x, Y: y}] = id
	return id, nil
}

// findChestLocked ищет сундук, занимающий клетку (x, y).
func (w *World) findChestLocked(x, y int) (int, bool) {
	for dx := 0; dx <= 1; dx++ {
		for dy := 0; dy <= 1; dy++ {
			if id, ok := w.chestAt[vec.Vec2{X: x - dx, Y: y - dy}]; ok {
				return id, true
			}
		}
	}
	return 0, false
}

// ChestAt возвращает сундук, занимающий клетку (x, y).
func (w *World) ChestAt(x, y int) (Chest, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.findChestLocked(x, y)
	if !ok {
		return Chest{}, false
	}
	return w.chests[id].clone(), true
}

func (w *World) Chest(id int) (Chest, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chests[id]
	if !ok {
		return Chest{}, false
	}
	return c.clone(), true
}

func (c *Chest) clone() Chest {
	cp := *c
	cp.Items = append([]ChestItem(nil), c.Items...)
	return cp
}

func (w *World) SetChestItem(id, slot int, it ChestItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.chests[id]
	if !ok {
		return ErrNoChest
	}
	if slot < 0 || slot >= len(c.Items) {
		return ErrBadSlot
	}
	c.Items[slot] = it
	return nil
}

// RemoveChestAt убирает сундук, занимающий клетку.
func (w *World) RemoveChestAt(x, y int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.findChestLocked(x, y)
	if !ok {
		return false
	}
	c := w.chests[id]
	delete(w.chestAt, vec.Vec2{X: c.X, Y: c.Y})
	delete(w.chests, id)
	return true
}

func (w *World) ChestCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chests)
}

// MaxChests — лимит сундуков мира.
func (w *World) MaxChests() int { return w.maxChests }

// --- таблички ---

func (w *World) Sign(id int) (Sign, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.signs[id]
	if !ok {
		return Sign{}, false
	}
	return *s, true
}

// SignAt ищет табличку с углом в (x, y).
func (w *World) SignAt(x, y int) (Sign, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.signAt[vec.Vec2{X: x, Y: y}]
	if !ok {
		return Sign{}, false
	}
	return *w.signs[id], true
}

// SetSign создает или переписывает табличку.
func (w *World) SetSign(id, x, y int, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.signs[id]; ok {
		delete(w.signAt, vec.Vec2{X: s.X, Y: s.Y})
		s.X, s.Y, s.Text = x, y, text
		w.signAt[vec.Vec2{X: x, Y: y}] = id
		return nil
	}
	if len(w.signs) >= MaxSigns {
		return ErrSignLimit
	}
	w.signs[id] = &Sign{ID: id, X: x, Y: y, Text: text}
	w.signAt[vec.Vec2{X: x, Y: y}] = id
	return nil
}

// --- NPC ---

// SpawnNPC добавляет или заменяет NPC.
func (w *World) SpawnNPC(n NPC) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := n
	w.npcs[n.ID] = &cp
}

func (w *World) NPC(id int) (NPC, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n, ok := w.npcs[id]
	if !ok {
		return NPC{}, false
	}
	return *n, true
}

// StrikeNPC наносит урон; NPC с нулевым здоровьем деактивируется.
func (w *World) StrikeNPC(id int, damage int32) (NPC, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, ok := w.npcs[id]
	if !ok || !n.Active {
		return NPC{}, false
	}
	n.Life -= damage
	if n.Life <= 0 {
		n.Life = 0
		n.Active = false
	}
	return *n, true
}

func (w *World) SetNPCHome(id int, x, y int16, homeless bool) (NPC, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, ok := w.npcs[id]
	if !ok {
		return NPC{}, false
	}
	n.HomeX, n.HomeY, n.Homeless = x, y, homeless
	return *n, true
}

// Update — сетевое состояние NPC для рассылки и исправлений.
func (n NPC) Update() *protocol.NpcUpdate {
	return &protocol.NpcUpdate{
		ID:       int16(n.ID),
		PosX:     n.Pos.X,
		PosY:     n.Pos.Y,
		Life:     n.Life,
		HomeX:    n.HomeX,
		HomeY:    n.HomeY,
		Homeless: n.Homeless,
	}
}

// --- предметы ---

func (w *World) SetItem(it DroppedItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := it
	w.items[it.ID] = &cp
}

func (w *World) Item(id int) (DroppedItem, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	it, ok := w.items[id]
	if !ok {
		return DroppedItem{}, false
	}
	return *it, true
}

func (w *World) RemoveItem(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.items[id]
	delete(w.items, id)
	return ok
}
