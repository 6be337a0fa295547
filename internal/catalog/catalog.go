// Package catalog содержит неизменяемые статические таблицы: предметы,
// свойства тайлов, максимальные стили, семейства взаимозаменяемых тайлов и стен.
// Таблицы загружаются один раз и дальше только читаются, поэтому безопасны для
// конкурентного доступа без блокировок.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// Tool — инструмент, необходимый для разрушения тайла.
type Tool int

const (
	ToolNone Tool = iota
	ToolPickaxe
	ToolAxe
	ToolHammer
)

func (t Tool) String() string {
	switch t {
	case ToolPickaxe:
		return "pickaxe"
	case ToolAxe:
		return "axe"
	case ToolHammer:
		return "hammer"
	default:
		return "none"
	}
}

// Item — описание предмета. CreateTile/CreateWall = -1, если предмет ничего не ставит.
type Item struct {
	ID         int16
	Name       string
	Pick       int
	Axe        int
	Hammer     int
	Explosive  bool
	CreateTile int
	CreateWall int
	MaxStack   int
}

// Has сообщает, обладает ли предмет возможностью инструмента.
func (it Item) Has(tool Tool) bool {
	switch tool {
	case ToolPickaxe:
		return it.Pick > 0
	case ToolAxe:
		return it.Axe > 0
	case ToolHammer:
		return it.Hammer > 0
	default:
		return true
	}
}

// TileFlags — свойства типа тайла.
type TileFlags struct {
	Solid      bool
	Cut        bool
	Axe        bool
	Hammer     bool
	Moss       bool
	Breakable  bool
	Orientable bool
}

// Projectile — описание типа снаряда.
type Projectile struct {
	Type       int16
	Name       string
	SourceItem string
	Hostile    bool
	Fuse       bool
}

// Limits — размеры таблиц игры.
type Limits struct {
	MaxTileSets   int `yaml:"max_tile_sets"`
	MaxWallTypes  int `yaml:"max_wall_types"`
	MaxItemTypes  int `yaml:"max_item_types"`
	MinItemType   int `yaml:"min_item_type"`
	MaxProjectile int `yaml:"max_projectiles"`
	MaxNPCs       int `yaml:"max_npcs"`
	MaxChestItems int `yaml:"max_chest_items"`
	InventorySize int `yaml:"inventory_size"`
}

// Special — отдельные идентификаторы, на которые ссылаются правила.
type Special struct {
	ChestTile       uint16
	BoulderTile     uint16
	IceRodTile      uint16
	RopeTile        uint16
	Wrench          int16
	WireCutter      int16
	Shrapnel        int16
	InvisibilityBuf uint8
}

// Catalog — набор статических таблиц.
type Catalog struct {
	items       map[int16]Item
	itemsByName map[string]Item
	tiles       map[uint16]TileFlags
	maxStyles   map[uint16]uint8
	placeExempt map[uint16]bool
	piggyBanks  map[uint16]bool
	tileFamily  map[uint16]string
	wallFamily  map[uint8]string
	projectiles map[int16]Projectile
	sharedNew   map[int16]bool
	sharedKill  map[int16]bool
	buffMax     map[uint8]int16
	buckets     map[int16]int

	Limits  Limits
	Special Special
}

type fileItem struct {
	ID         int16  `yaml:"id"`
	Name       string `yaml:"name"`
	Pick       int    `yaml:"pick"`
	Axe        int    `yaml:"axe"`
	Hammer     int    `yaml:"hammer"`
	Explosive  bool   `yaml:"explosive"`
	CreateTile *int   `yaml:"create_tile"`
	CreateWall *int   `yaml:"create_wall"`
	MaxStack   int    `yaml:"max_stack"`
}

type fileProjectile struct {
	Type       int16  `yaml:"type"`
	Name       string `yaml:"name"`
	SourceItem string `yaml:"source_item"`
	Hostile    bool   `yaml:"hostile"`
	Fuse       bool   `yaml:"fuse"`
}

type file struct {
	Items []fileItem `yaml:"items"`
	Tiles struct {
		Solid       []uint16         `yaml:"solid"`
		Cut         []uint16         `yaml:"cut"`
		Axe         []uint16         `yaml:"axe"`
		Hammer      []uint16         `yaml:"hammer"`
		Moss        []uint16         `yaml:"moss"`
		Breakable   []uint16         `yaml:"breakable"`
		Orientable  []uint16         `yaml:"orientable"`
		MaxStyles   map[uint16]uint8 `yaml:"max_styles"`
		PlaceExempt []uint16         `yaml:"place_exempt"`
		PiggyBanks  []uint16         `yaml:"piggy_banks"`
		Chest       uint16           `yaml:"chest"`
		Boulder     uint16           `yaml:"boulder"`
		IceRod      uint16           `yaml:"ice_rod"`
		Rope        uint16           `yaml:"rope"`
	} `yaml:"tiles"`
	Families struct {
		Tiles map[string][]uint16 `yaml:"tiles"`
		Walls map[string][]uint8  `yaml:"walls"`
	} `yaml:"families"`
	Projectiles       []fileProjectile `yaml:"projectiles"`
	SharedProjectiles struct {
		New  []int16 `yaml:"new"`
		Kill []int16 `yaml:"kill"`
	} `yaml:"shared_projectiles"`
	Shrapnel int16 `yaml:"shrapnel"`
	Buffs    struct {
		MaxTime      map[uint8]int16 `yaml:"max_time"`
		Invisibility uint8           `yaml:"invisibility"`
	} `yaml:"buffs"`
	Buckets map[int16]int `yaml:"buckets"`
	Tools   struct {
		Wrench     int16 `yaml:"wrench"`
		WireCutter int16 `yaml:"wire_cutter"`
	} `yaml:"tools"`
	Limits Limits `yaml:"limits"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default возвращает встроенный каталог. Ошибка разбора встроенного файла — ошибка сборки.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("catalog: встроенный каталог поврежден: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load разбирает каталог из YAML.
func Load(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: разбор yaml: %w", err)
	}
	if f.Limits.MaxTileSets <= 0 || f.Limits.MaxWallTypes <= 0 || f.Limits.MaxItemTypes <= 0 {
		return nil, fmt.Errorf("catalog: limits не заданы")
	}

	c := &Catalog{
		items:       make(map[int16]Item, len(f.Items)),
		itemsByName: make(map[string]Item, len(f.Items)),
		tiles:       make(map[uint16]TileFlags),
		maxStyles:   f.Tiles.MaxStyles,
		placeExempt: setOf(f.Tiles.PlaceExempt),
		piggyBanks:  setOf(f.Tiles.PiggyBanks),
		tileFamily:  make(map[uint16]string),
		wallFamily:  make(map[uint8]string),
		projectiles: make(map[int16]Projectile, len(f.Projectiles)),
		sharedNew:   setOf(f.SharedProjectiles.New),
		sharedKill:  setOf(f.SharedProjectiles.Kill),
		buffMax:     f.Buffs.MaxTime,
		buckets:     f.Buckets,
		Limits:      f.Limits,
		Special: Special{
			ChestTile:       f.Tiles.Chest,
			BoulderTile:     f.Tiles.Boulder,
			IceRodTile:      f.Tiles.IceRod,
			RopeTile:        f.Tiles.Rope,
			Wrench:          f.Tools.Wrench,
			WireCutter:      f.Tools.WireCutter,
			Shrapnel:        f.Shrapnel,
			InvisibilityBuf: f.Buffs.Invisibility,
		},
	}
	if c.maxStyles == nil {
		c.maxStyles = map[uint16]uint8{}
	}
	if c.buffMax == nil {
		c.buffMax = map[uint8]int16{}
	}
	if c.buckets == nil {
		c.buckets = map[int16]int{}
	}

	for _, fi := range f.Items {
		if _, dup := c.items[fi.ID]; dup {
			return nil, fmt.Errorf("catalog: предмет %d описан дважды", fi.ID)
		}
		it := Item{
			ID: fi.ID, Name: fi.Name, Pick: fi.Pick, Axe: fi.Axe, Hammer: fi.Hammer,
			Explosive: fi.Explosive, CreateTile: -1, CreateWall: -1, MaxStack: fi.MaxStack,
		}
		if fi.CreateTile != nil {
			it.CreateTile = *fi.CreateTile
		}
		if fi.CreateWall != nil {
			it.CreateWall = *fi.CreateWall
		}
		c.items[it.ID] = it
		c.itemsByName[it.Name] = it
	}

	mark := func(ids []uint16, set func(*TileFlags)) {
		for _, id := range ids {
			fl := c.tiles[id]
			set(&fl)
			c.tiles[id] = fl
		}
	}
	mark(f.Tiles.Solid, func(fl *TileFlags) { fl.Solid = true })
	mark(f.Tiles.Cut, func(fl *TileFlags) { fl.Cut = true })
	mark(f.Tiles.Axe, func(fl *TileFlags) { fl.Axe = true })
	mark(f.Tiles.Hammer, func(fl *TileFlags) { fl.Hammer = true })
	mark(f.Tiles.Moss, func(fl *TileFlags) { fl.Moss = true })
	mark(f.Tiles.Breakable, func(fl *TileFlags) { fl.Breakable = true })
	mark(f.Tiles.Orientable, func(fl *TileFlags) { fl.Orientable = true })

	for name, ids := range f.Families.Tiles {
		for _, id := range ids {
			c.tileFamily[id] = name
		}
	}
	// Мох относится к каменному семейству.
	for _, id := range f.Tiles.Moss {
		c.tileFamily[id] = "stone"
	}
	for name, ids := range f.Families.Walls {
		for _, id := range ids {
			c.wallFamily[id] = name
		}
	}

	for _, fp := range f.Projectiles {
		c.projectiles[fp.Type] = Projectile(fp)
	}
	return c, nil
}

func setOf[T comparable](ids []T) map[T]bool {
	m := make(map[T]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// Item возвращает описание предмета; неизвестный предмет — пустой, без возможностей.
func (c *Catalog) Item(id int16) Item {
	if it, ok := c.items[id]; ok {
		return it
	}
	return Item{ID: id, CreateTile: -1, CreateWall: -1}
}

// ItemByName ищет предмет по имени.
func (c *Catalog) ItemByName(name string) (Item, bool) {
	it, ok := c.itemsByName[name]
	return it, ok
}

// KnownItemType — тип предмета в допустимом диапазоне таблицы.
func (c *Catalog) KnownItemType(id int16) bool {
	return int(id) >= c.Limits.MinItemType && int(id) < c.Limits.MaxItemTypes
}

func (c *Catalog) Tile(t uint16) TileFlags { return c.tiles[t] }

// RequiredTool — какой инструмент нужен для разрушения тайла.
// ToolNone для срезаемых и ломаемых руками тайлов.
func (c *Catalog) RequiredTool(t uint16) Tool {
	fl := c.tiles[t]
	switch {
	case fl.Cut || fl.Breakable:
		return ToolNone
	case fl.Axe:
		return ToolAxe
	case fl.Hammer:
		return ToolHammer
	default:
		return ToolPickaxe
	}
}

// MaxStyle возвращает максимальный стиль для типа, если он ограничен.
func (c *Catalog) MaxStyle(t uint16) (uint8, bool) {
	s, ok := c.maxStyles[t]
	return s, ok
}

// PlaceExempt — тип ставится побочным эффектом другого предмета (ледяной жезл, веревка).
func (c *Catalog) PlaceExempt(t uint16) bool { return c.placeExempt[t] }

func (c *Catalog) IsPiggyBank(t uint16) bool { return c.piggyBanks[t] }

// SameTileFamily — оба типа из одного косметического семейства.
func (c *Catalog) SameTileFamily(a, b uint16) bool {
	fa, ok := c.tileFamily[a]
	return ok && fa == c.tileFamily[b]
}

// SameWallFamily — обе стены из одного семейства.
func (c *Catalog) SameWallFamily(a, b uint8) bool {
	fa, ok := c.wallFamily[a]
	return ok && fa == c.wallFamily[b]
}

func (c *Catalog) Projectile(t int16) (Projectile, bool) {
	p, ok := c.projectiles[t]
	return p, ok
}

// SharedNewProjectile — снаряд может прийти с чужим owner.
func (c *Catalog) SharedNewProjectile(t int16) bool { return c.sharedNew[t] }

// SharedKillProjectile — снаряд может уничтожить не владелец.
func (c *Catalog) SharedKillProjectile(t int16) bool { return c.sharedKill[t] }

// BuffMaxTime — максимальная длительность баффа, который игрок может наложить на другого; 0 — запрещено.
func (c *Catalog) BuffMaxTime(b uint8) int16 { return c.buffMax[b] }

// Bucket — код ведра: 0 пустое, 1 вода, 2 лава, 3 мед.
func (c *Catalog) Bucket(item int16) (int, bool) {
	b, ok := c.buckets[item]
	return b, ok
}
