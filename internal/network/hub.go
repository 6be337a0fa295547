package network

import (
	"errors"
	"sort"
	"sync"

	"github.com/annel0/packetguard/internal/player"
)

// ErrServerFull — свободных индексов соединений нет.
var ErrServerFull = errors.New("server is full")

// Conn — исходящая сторона соединения. Write должен быть безопасен
// для вызова из нескольких горутин.
type Conn interface {
	Write(frame []byte) (int, error)
	Close() error
}

type session struct {
	p    *player.Player
	conn Conn
}

// Hub — реестр активных соединений по индексу.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int]*session
	max      int
}

func NewHub(maxPlayers int) *Hub {
	return &Hub{sessions: make(map[int]*session), max: maxPlayers}
}

// Join занимает наименьший свободный индекс и регистрирует соединение.
// create строит сессию для выбранного индекса под блокировкой реестра.
func (h *Hub) Join(conn Conn, create func(index int) *player.Player) (*player.Player, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < h.max; i++ {
		if _, busy := h.sessions[i]; busy {
			continue
		}
		p := create(i)
		h.sessions[i] = &session{p: p, conn: conn}
		return p, nil
	}
	return nil, ErrServerFull
}

// Leave освобождает индекс.
func (h *Hub) Leave(index int) {
	h.mu.Lock()
	delete(h.sessions, index)
	h.mu.Unlock()
}

// Conn возвращает соединение по индексу.
func (h *Hub) Conn(index int) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[index]
	if !ok {
		return nil, false
	}
	return s.conn, true
}

// Each вызывает fn для каждого соединения, кроме except (-1 — без исключений).
// fn вызывается вне блокировки реестра.
func (h *Hub) Each(except int, fn func(index int, c Conn)) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for i, s := range h.sessions {
		if i != except {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range targets {
		fn(s.p.Index, s.conn)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Statuses — снимки всех сессий по возрастанию индекса.
func (h *Hub) Statuses() []*player.Status {
	h.mu.RLock()
	out := make([]*player.Status, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s.p.Status())
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Status — снимок одной сессии.
func (h *Hub) Status(index int) (*player.Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[index]
	if !ok {
		return nil, false
	}
	return s.p.Status(), true
}

// CloseAll закрывает все соединения; горутины чтения завершатся сами.
func (h *Hub) CloseAll() {
	h.Each(-1, func(_ int, c Conn) { _ = c.Close() })
}
