// Package hooks — подписчики на входящие сообщения, вызываемые до встроенных проверок.
//
// Подписчик получает изменяемую запись и может пометить событие как обработанное:
// тогда диспетчер не запускает конвейер проверок и не делает коммит.
package hooks

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/protocol"
)

// Event — одно входящее сообщение в момент вызова подписчиков.
type Event struct {
	Kind   protocol.Kind
	Sender int // индекс соединения-отправителя
	Record protocol.Record

	// Handled останавливает дальнейшую обработку сообщения.
	Handled bool
}

// Handler — подписчик. Не должен блокироваться и не должен сохранять Record после возврата.
type Handler func(ev *Event)

type subscription struct {
	id        uint64
	name      string
	fn        Handler
	failures  atomic.Int32
	suspended atomic.Bool
}

// SubscriberInfo — состояние подписчика для диагностики.
type SubscriberInfo struct {
	Kind      protocol.Kind
	Name      string
	Failures  int
	Suspended bool
}

// Registry хранит подписчиков по типам сообщений.
type Registry struct {
	mu     sync.RWMutex
	subs   map[protocol.Kind][]*subscription
	nextID atomic.Uint64

	slowThreshold time.Duration
	maxFailures   int
	log           *logging.Logger
	now           func() time.Time
}

// NewRegistry создает реестр. Подписчик, который maxFailures раз подряд
// паниковал или работал дольше slowThreshold, отключается.
func NewRegistry(slowThreshold time.Duration, maxFailures int) *Registry {
	return &Registry{
		subs:          make(map[protocol.Kind][]*subscription),
		slowThreshold: slowThreshold,
		maxFailures:   maxFailures,
		log:           logging.GetComponentLogger("hooks"),
		now:           time.Now,
	}
}

// Register добавляет подписчика в конец списка типа и возвращает функцию отписки.
func (r *Registry) Register(kind protocol.Kind, name string, fn Handler) (unsubscribe func()) {
	s := &subscription{id: r.nextID.Add(1), name: name, fn: fn}

	r.mu.Lock()
	r.subs[kind] = append(r.subs[kind], s)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(kind, s.id) })
	}
}

func (r *Registry) remove(kind protocol.Kind, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[kind]
	for i, s := range list {
		if s.id == id {
			// копия, чтобы не портить срез, который сейчас обходит Invoke
			next := make([]*subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			r.subs[kind] = next
			return
		}
	}
}

// On регистрирует типизированного подписчика для записей типа *T.
func On[T any, PT interface {
	*T
	protocol.Record
}](r *Registry, name string, fn func(rec PT, ev *Event)) func() {
	var zero T
	kind := PT(&zero).Kind()
	return r.Register(kind, name, func(ev *Event) {
		if rec, ok := ev.Record.(PT); ok {
			fn(rec, ev)
		}
	})
}

// Invoke вызывает подписчиков по порядку регистрации и возвращает ev.Handled.
// Паника подписчика перехватывается и не влияет на остальных.
func (r *Registry) Invoke(ev *Event) bool {
	r.mu.RLock()
	list := r.subs[ev.Kind]
	r.mu.RUnlock()

	for _, s := range list {
		if s.suspended.Load() {
			continue
		}
		r.call(s, ev)
		if ev.Handled {
			return true
		}
	}
	return false
}

func (r *Registry) call(s *subscription, ev *Event) {
	start := r.now()
	failed := false
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				failed = true
				r.log.Error("Паника в подписчике %q (%s): %v", s.name, ev.Kind, rec)
			}
		}()
		s.fn(ev)
	}()

	if elapsed := r.now().Sub(start); r.slowThreshold > 0 && elapsed > r.slowThreshold {
		failed = true
		r.log.Warn("Медленный подписчик %q (%s): %v", s.name, ev.Kind, elapsed)
	}

	if !failed {
		s.failures.Store(0)
		return
	}
	if n := int(s.failures.Add(1)); r.maxFailures > 0 && n >= r.maxFailures {
		if s.suspended.CompareAndSwap(false, true) {
			r.log.Warn("Подписчик %q (%s) отключен после %d сбоев подряд", s.name, ev.Kind, n)
		}
	}
}

// Count — число активных подписчиков типа.
func (r *Registry) Count(kind protocol.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.subs[kind] {
		if !s.suspended.Load() {
			n++
		}
	}
	return n
}

// Subscribers возвращает состояние всех подписчиков.
func (r *Registry) Subscribers() []SubscriberInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []SubscriberInfo
	for kind, list := range r.subs {
		for _, s := range list {
			out = append(out, SubscriberInfo{
				Kind:      kind,
				Name:      s.name,
				Failures:  int(s.failures.Load()),
				Suspended: s.suspended.Load(),
			})
		}
	}
	return out
}

// Resume снова включает отключенного подписчика по имени.
func (r *Registry) Resume(kind protocol.Kind, name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs[kind] {
		if s.name == name {
			s.failures.Store(0)
			s.suspended.Store(false)
			return nil
		}
	}
	return fmt.Errorf("hooks: подписчик %q для %s не найден", name, kind)
}
