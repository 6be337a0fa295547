package guard

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/annel0/packetguard/internal/auth"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/world"
)

const defaultLife = 100

// handleConnecting решает, пускать ли соединение сразу, по UUID, или запросить пароль.
func (g *Guard) handleConnecting(ctx context.Context, p *player.Player) Result {
	kind := protocol.KindContinueConnecting2
	if p.State != player.StateConnecting {
		return Result{Kind: kind, Outcome: Drop, Check: "handshake", Reason: "already connected"}
	}
	if !p.ReceivedInfo {
		return g.conclude(ctx, p, kind, "handshake", violation("continue connecting before player info"))
	}

	cfg := g.Config()
	user := g.lookupUser(ctx, p.Name)
	switch {
	case user != nil && !cfg.DisableUUIDLogin && p.UUID != "" && user.UUID == p.UUID:
		res := Result{Kind: kind, Outcome: Commit}
		g.login(ctx, p, user, &res)
		g.join(p, &res)
		return res
	case user != nil && !cfg.DisableLoginBeforeJoin, cfg.ServerPassword != "":
		p.RequiresPassword = true
		p.State = player.StateAwaitingCredential
		p.PublishStatus()
		return Result{Kind: kind, Outcome: Commit, Replies: []protocol.Record{&protocol.PasswordRequired{}}}
	}
	res := Result{Kind: kind, Outcome: Commit}
	g.join(p, &res)
	return res
}

// handlePassword проверяет пароль учетной записи или сервера.
func (g *Guard) handlePassword(ctx context.Context, p *player.Player, r *protocol.PasswordSend) Result {
	kind := protocol.KindPasswordSend
	if p.State != player.StateAwaitingCredential {
		return g.conclude(ctx, p, kind, "handshake", violation("password without request"))
	}
	cfg := g.Config()

	if user := g.lookupUser(ctx, p.Name); user != nil && !cfg.DisableLoginBeforeJoin {
		if !auth.CheckPassword(user.PasswordHash, r.Password) {
			return g.conclude(ctx, p, kind, "handshake", kick("Invalid user account password."))
		}
		if auth.NeedsRehash(user.PasswordHash) {
			g.log.Debug("Учетная запись %s хранит пароль в устаревшем формате", user.Username)
		}
		res := Result{Kind: kind, Outcome: Commit}
		g.login(ctx, p, user, &res)
		g.join(p, &res)
		return res
	}

	if cfg.ServerPassword != "" {
		if subtle.ConstantTimeCompare([]byte(cfg.ServerPassword), []byte(r.Password)) != 1 {
			return g.conclude(ctx, p, kind, "handshake", kick("Incorrect server password"))
		}
		res := Result{Kind: kind, Outcome: Commit}
		g.join(p, &res)
		return res
	}
	return g.conclude(ctx, p, kind, "handshake", kick("Bad password attempt"))
}

func (g *Guard) lookupUser(ctx context.Context, name string) *auth.User {
	if g.users == nil || name == "" {
		return nil
	}
	u, err := g.users.GetUserByUsername(ctx, name)
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			g.log.Error("Поиск учетной записи %s: %v", name, err)
		}
		return nil
	}
	return u
}

// login привязывает учетную запись: группа, персонаж, снятие ограничений инвентаря.
func (g *Guard) login(ctx context.Context, p *player.Player, u *auth.User, res *Result) {
	cfg := g.Config()
	if cfg.ServerSideCharacter {
		c, ok, err := g.chars.LoadCharacter(ctx, u.ID)
		switch {
		case err != nil:
			g.log.Error("Загрузка персонажа %s: %v", u.Username, err)
		case ok:
			p.Character = c
		default:
			if err := g.chars.SaveCharacter(ctx, u.ID, p.Character); err != nil {
				g.log.Error("Сохранение персонажа %s: %v", u.Username, err)
			}
		}
	}
	p.Login(u.ID, u.Username, g.groups.Get(u.Group))
	// снимаются только ограничения, от которых группа освобождена
	p.ClearIgnore(player.IgnoreInventory)
	if p.HasPermission(permissions.BypassInventory) {
		p.ClearIgnore(player.IgnoreTrashCan)
	}
	if p.HasPermission(permissions.IgnoreStackHack) {
		p.ClearIgnore(player.IgnoreCheating)
	}

	if p.UUID != "" {
		if err := g.users.SetUUID(ctx, u.ID, p.UUID); err != nil {
			g.log.Warn("UUID для %s не сохранен: %v", u.Username, err)
		}
	}
	if err := g.users.TouchLogin(ctx, u.ID); err != nil {
		g.log.Warn("Время входа %s не обновлено: %v", u.Username, err)
	}

	g.log.Info("%s (%s) вошел как %s", displayName(p), p.IP, u.Username)
	res.Notices = append(res.Notices, fmt.Sprintf("Authenticated as %s successfully.", u.Username))
	if g.notify != nil {
		g.notify.LoggedIn(ctx, p)
	}
}

// join завершает рукопожатие: аватар в мире и WorldInfo клиенту.
func (g *Guard) join(p *player.Player, res *Result) {
	p.State = player.StateAuthenticated
	p.RequiresPassword = false

	life := p.Character.MaxHealth
	if life <= 0 {
		life = p.FirstMaxHP
	}
	if life <= 0 {
		life = defaultLife
	}
	mana := max(p.Character.MaxMana, p.FirstMaxMP)

	g.world.JoinAvatar(world.Avatar{
		Index:      p.Index,
		Name:       p.Name,
		Pos:        spawnPixel(g.world.Spawn()),
		Hostile:    p.Hostile,
		Team:       p.Team,
		Life:       life,
		LifeMax:    life,
		Mana:       mana,
		ManaMax:    mana,
		Difficulty: p.Difficulty,
	})
	p.PublishStatus()
	res.Replies = append(res.Replies, g.world.Info())
}
