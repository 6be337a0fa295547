package itembans

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/packetguard/internal/logging"
)

// ReloadMessage — уведомление о том, что список запретов изменился.
type ReloadMessage struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Watcher перечитывает реестр из источника по сообщению NATS.
type Watcher struct {
	conn     *nats.Conn
	subject  string
	nodeID   string
	registry *Registry
	source   Source
	timeout  time.Duration

	sub      *nats.Subscription
	reloads  atomic.Int64
	failures atomic.Int64
	log      *logging.Logger
}

// NewWatcher подключается к NATS. Подписка начинается в Start.
func NewWatcher(url, subject, nodeID string, registry *Registry, source Source) (*Watcher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	w := newWatcher(subject, nodeID, registry, source)
	w.conn = conn
	return w, nil
}

func newWatcher(subject, nodeID string, registry *Registry, source Source) *Watcher {
	return &Watcher{
		subject:  subject,
		nodeID:   nodeID,
		registry: registry,
		source:   source,
		timeout:  5 * time.Second,
		log:      logging.GetComponentLogger("itembans"),
	}
}

// Start подписывается на уведомления; подписка снимается при отмене ctx.
func (w *Watcher) Start(ctx context.Context) error {
	if w.sub != nil {
		return fmt.Errorf("already subscribed to %s", w.subject)
	}
	sub, err := w.conn.Subscribe(w.subject, w.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.subject, err)
	}
	w.sub = sub
	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			w.log.Warn("Отписка от %s: %v", w.subject, err)
		}
	}()
	w.log.Info("Подписка на обновления запретов: %s", w.subject)
	return nil
}

// Notify сообщает остальным узлам, что список изменился.
func (w *Watcher) Notify(reason string) error {
	data, err := json.Marshal(ReloadMessage{NodeID: w.nodeID, Timestamp: time.Now(), Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to marshal reload message: %w", err)
	}
	if err := w.conn.Publish(w.subject, data); err != nil {
		return fmt.Errorf("failed to publish reload: %w", err)
	}
	return nil
}

func (w *Watcher) handle(msg *nats.Msg) {
	var m ReloadMessage
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			w.failures.Add(1)
			w.log.Warn("Некорректное сообщение в %s: %v", msg.Subject, err)
			return
		}
	}
	if m.NodeID != "" && m.NodeID == w.nodeID {
		return // свое уведомление, реестр уже актуален
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	n, err := w.registry.Reload(ctx, w.source)
	if err != nil {
		w.failures.Add(1)
		w.log.Error("Не удалось перечитать запреты: %v", err)
		return
	}
	w.reloads.Add(1)
	w.log.Info("Запреты перечитаны: %d предметов", n)
}

// Stats — число успешных перезагрузок и ошибок.
func (w *Watcher) Stats() (reloads, failures int64) {
	return w.reloads.Load(), w.failures.Load()
}

func (w *Watcher) Close() {
	if w.conn != nil {
		w.conn.Close()
	}
}
