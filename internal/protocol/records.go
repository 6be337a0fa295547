package protocol

// Record — декодированное сообщение одного типа. Записи содержат только данные.
type Record interface {
	Kind() Kind
	encode(w *Writer)
}

// TileAction — вариант действия в сообщении Tile.
type TileAction uint8

const (
	TileKillTile       TileAction = 0
	TilePlaceTile      TileAction = 1
	TileKillWall       TileAction = 2
	TilePlaceWall      TileAction = 3
	TileKillTileNoItem TileAction = 4
	TilePlaceWire      TileAction = 5
	TileKillWire       TileAction = 6
)

// Valid — действие входит в известный набор.
func (a TileAction) Valid() bool { return a <= TileKillWire }

func (a TileAction) IsKillTile() bool { return a == TileKillTile || a == TileKillTileNoItem }
func (a TileAction) IsPlace() bool    { return a == TilePlaceTile || a == TilePlaceWall }

// Типы жидкостей.
const (
	LiquidWater uint8 = 0
	LiquidLava  uint8 = 1
	LiquidHoney uint8 = 2
)

// Disconnect — сервер → клиент, причина разрыва.
type Disconnect struct {
	Reason string
}

// PlayerInfo — внешний вид и имя персонажа.
type PlayerInfo struct {
	PlayerID   uint8
	Hair       uint8
	Male       bool
	Colors     [21]byte // 7 цветов RGB
	Difficulty uint8
	Name       string
}

// PlayerSlot — содержимое слота инвентаря.
type PlayerSlot struct {
	PlayerID uint8
	Slot     uint8
	Stack    uint8
	Prefix   uint8
	ItemType int16
}

// ContinueConnecting2 — клиент готов продолжить подключение, полезной нагрузки нет.
type ContinueConnecting2 struct{}

// WorldInfo — сервер → клиент.
type WorldInfo struct {
	Time    int32
	DayTime bool
	Width   int32
	Height  int32
	SpawnX  int32
	SpawnY  int32
	WorldID int32
	Name    string
}

type PlayerSpawn struct {
	PlayerID uint8
	SpawnX   int32
	SpawnY   int32
}

// PlayerUpdate — позиция, скорость, управление.
type PlayerUpdate struct {
	PlayerID     uint8
	Control      uint8
	SelectedItem uint8
	PosX, PosY   float32
	VelX, VelY   float32
	Pulley       uint8
}

type PlayerHp struct {
	PlayerID uint8
	Cur, Max int16
}

type PlayerMana struct {
	PlayerID uint8
	Cur, Max int16
}

// Tile — правка одной клетки мира.
type Tile struct {
	Action   TileAction
	X, Y     int32
	EditData uint8
	Style    uint8
}

// TileSendSquare — квадрат клеток size×size с левым верхним углом (X, Y).
// Клетки присутствуют только при 0 <= Size <= MaxSquareSize.
type TileSendSquare struct {
	Size  int16
	X, Y  int32
	Tiles []NetTile // построчно: индекс = x*Size + y
}

type ItemDrop struct {
	ID         int16
	PosX, PosY float32
	VelX, VelY float32
	Stack      int16
	Prefix     uint8
	NoDelay    bool
	ItemType   int16
}

// NpcUpdate — сервер → клиент, состояние NPC.
type NpcUpdate struct {
	ID         int16
	PosX, PosY float32
	VelX, VelY float32
	Life       int32
	HomeX      int16
	HomeY      int16
	Homeless   bool
}

type ChatText struct {
	PlayerID uint8
	R, G, B  uint8
	Text     string
}

type PlayerDamage struct {
	PlayerID  uint8
	Direction uint8
	Damage    int16
	PvP       bool
	Crit      bool
	Text      string
}

type ProjectileNew struct {
	Ident      int16
	PosX, PosY float32
	VelX, VelY float32
	Knockback  float32
	Damage     int16
	Owner      uint8
	Type       int16
}

type NpcStrike struct {
	NpcID     uint8
	Direction uint8
	Damage    int16
	PvP       uint8
	Crit      uint8
}

type ProjectileDestroy struct {
	Ident int16
	Owner uint8
}

type TogglePvp struct {
	PlayerID uint8
	Hostile  bool
}

type ChestGetContents struct {
	X, Y int32
}

type ChestItem struct {
	ChestID  int16
	Slot     uint8
	Stack    uint8
	Prefix   uint8
	ItemType int16
}

type TileKill struct {
	X, Y int32
}

// PasswordRequired — сервер → клиент, запрос пароля.
type PasswordRequired struct{}

type PasswordSend struct {
	Password string
}

type PlayerKillMe struct {
	PlayerID  uint8
	Direction uint8
	Damage    int16
	PvP       uint8
	Text      string
}

type PlayerTeam struct {
	PlayerID uint8
	Team     uint8
}

type SignNew struct {
	SignID int16
	X, Y   int32
	Text   string
}

type LiquidSet struct {
	X, Y   int32
	Amount uint8
	Liquid uint8
}

// PlayerBuffs — полный список активных баффов игрока.
type PlayerBuffs struct {
	PlayerID uint8
	Buffs    [MaxBuffs]uint8
}

type PlayerAddBuff struct {
	PlayerID uint8
	BuffType uint8
	Time     int16
}

type UpdateNPCHome struct {
	NpcID    int16
	HomeX    int16
	HomeY    int16
	Homeless uint8
}

type PaintTile struct {
	X, Y  int32
	Color uint8
}

type PaintWall struct {
	X, Y  int32
	Color uint8
}

type Teleport struct {
	Flag     uint8
	PlayerID int16
	X, Y     float32
}

// MaxSquareSize — максимальная сторона TileSendSquare, принимаемая от клиента.
const MaxSquareSize = 5

// MaxBuffs — число слотов баффов у игрока.
const MaxBuffs = 10

func (Disconnect) Kind() Kind          { return KindDisconnect }
func (PlayerInfo) Kind() Kind          { return KindPlayerInfo }
func (PlayerSlot) Kind() Kind          { return KindPlayerSlot }
func (ContinueConnecting2) Kind() Kind { return KindContinueConnecting2 }
func (WorldInfo) Kind() Kind           { return KindWorldInfo }
func (PlayerSpawn) Kind() Kind         { return KindPlayerSpawn }
func (PlayerUpdate) Kind() Kind        { return KindPlayerUpdate }
func (PlayerHp) Kind() Kind            { return KindPlayerHp }
func (Tile) Kind() Kind                { return KindTile }
func (TileSendSquare) Kind() Kind      { return KindTileSendSquare }
func (ItemDrop) Kind() Kind            { return KindItemDrop }
func (NpcUpdate) Kind() Kind           { return KindNpcUpdate }
func (ChatText) Kind() Kind            { return KindChatText }
func (PlayerDamage) Kind() Kind        { return KindPlayerDamage }
func (ProjectileNew) Kind() Kind       { return KindProjectileNew }
func (NpcStrike) Kind() Kind           { return KindNpcStrike }
func (ProjectileDestroy) Kind() Kind   { return KindProjectileDestroy }
func (TogglePvp) Kind() Kind           { return KindTogglePvp }
func (ChestGetContents) Kind() Kind    { return KindChestGetContents }
func (ChestItem) Kind() Kind           { return KindChestItem }
func (TileKill) Kind() Kind            { return KindTileKill }
func (PasswordRequired) Kind() Kind    { return KindPasswordRequired }
func (PasswordSend) Kind() Kind        { return KindPasswordSend }
func (PlayerMana) Kind() Kind          { return KindPlayerMana }
func (PlayerKillMe) Kind() Kind        { return KindPlayerKillMe }
func (PlayerTeam) Kind() Kind          { return KindPlayerTeam }
func (SignNew) Kind() Kind             { return KindSignNew }
func (LiquidSet) Kind() Kind           { return KindLiquidSet }
func (PlayerBuffs) Kind() Kind         { return KindPlayerBuffs }
func (PlayerAddBuff) Kind() Kind       { return KindPlayerAddBuff }
func (UpdateNPCHome) Kind() Kind       { return KindUpdateNPCHome }
func (PaintTile) Kind() Kind           { return KindPaintTile }
func (PaintWall) Kind() Kind           { return KindPaintWall }
func (Teleport) Kind() Kind            { return KindTeleport }
