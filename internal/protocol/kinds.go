package protocol

import "fmt"

// Kind — байт типа сообщения в заголовке кадра.
type Kind uint8

const (
	KindDisconnect          Kind = 2
	KindPlayerInfo          Kind = 4
	KindPlayerSlot          Kind = 5
	KindContinueConnecting2 Kind = 6
	KindWorldInfo           Kind = 7
	KindPlayerSpawn         Kind = 12
	KindPlayerUpdate        Kind = 13
	KindPlayerHp            Kind = 16
	KindTile                Kind = 17
	KindTileSendSquare      Kind = 20
	KindItemDrop            Kind = 21
	KindNpcUpdate           Kind = 23
	KindChatText            Kind = 25
	KindPlayerDamage        Kind = 26
	KindProjectileNew       Kind = 27
	KindNpcStrike           Kind = 28
	KindProjectileDestroy   Kind = 29
	KindTogglePvp           Kind = 30
	KindChestGetContents    Kind = 31
	KindChestItem           Kind = 32
	KindTileKill            Kind = 34
	KindPasswordRequired    Kind = 37
	KindPasswordSend        Kind = 38
	KindPlayerMana          Kind = 42
	KindPlayerKillMe        Kind = 44
	KindPlayerTeam          Kind = 45
	KindSignNew             Kind = 47
	KindLiquidSet           Kind = 48
	KindPlayerBuffs         Kind = 50
	KindPlayerAddBuff       Kind = 55
	KindUpdateNPCHome       Kind = 60
	KindPaintTile           Kind = 63
	KindPaintWall           Kind = 64
	KindTeleport            Kind = 65
)

var kindNames = map[Kind]string{
	KindDisconnect:          "Disconnect",
	KindPlayerInfo:          "PlayerInfo",
	KindPlayerSlot:          "PlayerSlot",
	KindContinueConnecting2: "ContinueConnecting2",
	KindWorldInfo:           "WorldInfo",
	KindPlayerSpawn:         "PlayerSpawn",
	KindPlayerUpdate:        "PlayerUpdate",
	KindPlayerHp:            "PlayerHp",
	KindTile:                "Tile",
	KindTileSendSquare:      "TileSendSquare",
	KindItemDrop:            "ItemDrop",
	KindNpcUpdate:           "NpcUpdate",
	KindChatText:            "ChatText",
	KindPlayerDamage:        "PlayerDamage",
	KindProjectileNew:       "ProjectileNew",
	KindNpcStrike:           "NpcStrike",
	KindProjectileDestroy:   "ProjectileDestroy",
	KindTogglePvp:           "TogglePvp",
	KindChestGetContents:    "ChestGetContents",
	KindChestItem:           "ChestItem",
	KindTileKill:            "TileKill",
	KindPasswordRequired:    "PasswordRequired",
	KindPasswordSend:        "PasswordSend",
	KindPlayerMana:          "PlayerMana",
	KindPlayerKillMe:        "PlayerKillMe",
	KindPlayerTeam:          "PlayerTeam",
	KindSignNew:             "SignNew",
	KindLiquidSet:           "LiquidSet",
	KindPlayerBuffs:         "PlayerBuffs",
	KindPlayerAddBuff:       "PlayerAddBuff",
	KindUpdateNPCHome:       "UpdateNPCHome",
	KindPaintTile:           "PaintTile",
	KindPaintWall:           "PaintWall",
	KindTeleport:            "Teleport",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Known сообщает, есть ли у типа декодер входящих сообщений.
func (k Kind) Known() bool {
	_, ok := decoders[k]
	return ok
}
