package network

import (
	"github.com/annel0/packetguard/internal/guard"
	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
)

// serverSpeaker — индекс отправителя для серверных сообщений в чате.
const serverSpeaker = 255

// Relay превращает результат конвейера в исходящие кадры.
type Relay struct {
	guard   *guard.Guard
	hub     *Hub
	metrics *Metrics
	log     *logging.Logger
}

func NewRelay(g *guard.Guard, hub *Hub, m *Metrics) *Relay {
	return &Relay{guard: g, hub: hub, metrics: m, log: logging.GetNetworkLogger()}
}

// Deliver отправляет всё, что требует res. rec — принятая запись (после подписчиков).
// Порядок: ответы, исправления, сообщения, пересылка, разрыв.
func (r *Relay) Deliver(p *player.Player, rec protocol.Record, res guard.Result) {
	for _, reply := range res.Replies {
		r.send(p.Index, protocol.Encode(reply))
	}

	// Исправления читают текущее состояние мира в момент отправки,
	// поэтому повтор дает тот же кадр.
	for _, c := range res.Corrections {
		fix := r.guard.Resolve(p, c)
		if fix == nil {
			r.log.Debug("Пустое исправление %d для %s", c.Target, res.Kind)
			continue
		}
		if c.Broadcast {
			r.broadcast(protocol.Encode(fix), -1)
		} else {
			r.send(p.Index, protocol.Encode(fix))
		}
	}

	for _, msg := range res.Notices {
		r.send(p.Index, protocol.Encode(notice(msg)))
	}
	for _, msg := range res.Announcements {
		r.broadcast(protocol.Encode(announcement(msg)), -1)
	}

	if res.Outcome == guard.Commit && res.Relay != guard.RelayNone {
		except := -1
		if res.Relay == guard.RelayAllExceptSender {
			except = p.Index
		}
		recs := res.Broadcast
		if len(recs) == 0 {
			recs = []protocol.Record{rec}
		}
		for _, out := range recs {
			r.broadcast(protocol.Encode(out), except)
		}
	}

	if res.Outcome == guard.Kick {
		r.send(p.Index, protocol.Encode(&protocol.Disconnect{Reason: res.Reason}))
	}
}

func (r *Relay) send(index int, frame []byte) {
	c, ok := r.hub.Conn(index)
	if !ok {
		return
	}
	r.write(index, c, frame)
}

func (r *Relay) broadcast(frame []byte, except int) {
	r.hub.Each(except, func(index int, c Conn) { r.write(index, c, frame) })
}

func (r *Relay) write(index int, c Conn, frame []byte) {
	n, err := c.Write(frame)
	r.metrics.sent(n)
	if err != nil {
		// соединение закроет его собственная горутина чтения
		r.log.Debug("Запись в соединение %d: %v", index, err)
	}
}

func notice(text string) *protocol.ChatText {
	return &protocol.ChatText{PlayerID: serverSpeaker, R: 255, G: 240, B: 20, Text: text}
}

func announcement(text string) *protocol.ChatText {
	return &protocol.ChatText{PlayerID: serverSpeaker, R: 255, G: 255, B: 255, Text: text}
}
