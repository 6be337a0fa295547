package player

import (
	"time"

	"github.com/annel0/packetguard/internal/vec"
)

// Status — неизменяемый снимок сессии для админ-API и метрик.
type Status struct {
	Index          int             `json:"index"`
	Name           string          `json:"name"`
	IP             string          `json:"ip"`
	UUID           string          `json:"uuid,omitempty"`
	State          string          `json:"state"`
	LoggedIn       bool            `json:"logged_in"`
	Account        string          `json:"account,omitempty"`
	Group          string          `json:"group"`
	Position       vec.Vec2Float   `json:"position"`
	Dead           bool            `json:"dead"`
	Ignoring       bool            `json:"ignoring"`
	Tracker        TrackerSnapshot `json:"tracker"`
	TilesCreated   int             `json:"tiles_created"`
	TilesDestroyed int             `json:"tiles_destroyed"`
	Messages       uint64          `json:"messages"`
	ConnectedAt    time.Time       `json:"connected_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PublishStatus собирает и атомарно публикует новый снимок.
// Вызывается горутиной соединения после каждого сообщения.
func (p *Player) PublishStatus() {
	group := ""
	if p.Group != nil {
		group = p.Group.Name
	}
	s := &Status{
		Index:          p.Index,
		Name:           p.Name,
		IP:             p.IP,
		UUID:           p.UUID,
		State:          p.State.String(),
		LoggedIn:       p.LoggedIn,
		Account:        p.AccountName,
		Group:          group,
		Position:       p.LastNetPosition,
		Dead:           p.Dead,
		Ignoring:       p.Ignoring(),
		Tracker:        p.Tracker.Snapshot(),
		TilesCreated:   p.TilesCreated.Len(),
		TilesDestroyed: p.TilesDestroyed.Len(),
		Messages:       p.messages.Load(),
		ConnectedAt:    p.ConnectedAt,
		UpdatedAt:      p.now(),
	}
	p.status.Store(s)
}

// Status возвращает последний опубликованный снимок. Безопасно из любой горутины.
func (p *Player) Status() *Status {
	return p.status.Load()
}
