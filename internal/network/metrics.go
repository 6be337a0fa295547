package network

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/packetguard/internal/guard"
	"github.com/annel0/packetguard/internal/protocol"
)

// Metrics — счетчики транспорта и конвейера проверок.
type Metrics struct {
	packets      *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	verdicts     *prometheus.CounterVec
	hooked       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	disabled     prometheus.Counter
	panics       prometheus.Counter
	connections  prometheus.Gauge
	rejectedFull prometheus.Counter
	bytesIn      prometheus.Counter
	bytesOut     prometheus.Counter
}

// NewMetrics создает метрики и регистрирует их в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "network",
			Name:      "packets_total",
			Help:      "Принятые кадры по типам сообщений.",
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "network",
			Name:      "decode_errors_total",
			Help:      "Кадры, которые не удалось разобрать.",
		}, []string{"kind"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "guard",
			Name:      "verdicts_total",
			Help:      "Итоги конвейера проверок.",
		}, []string{"kind", "outcome", "check"}),
		hooked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "guard",
			Name:      "hook_handled_total",
			Help:      "Сообщения, обработанные подписчиками вместо встроенных проверок.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "packetguard",
			Subsystem: "guard",
			Name:      "handle_duration_seconds",
			Help:      "Время обработки одного сообщения.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"kind"}),
		disabled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "guard",
			Name:      "connections_disabled_total",
			Help:      "Переходы соединений в Disabled.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "network",
			Name:      "dispatch_panics_total",
			Help:      "Паники, перехваченные диспетчером.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "packetguard",
			Subsystem: "network",
			Name:      "connections",
			Help:      "Открытые соединения.",
		}),
		rejectedFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "network",
			Name:      "connections_rejected_total",
			Help:      "Соединения, отклоненные из-за отсутствия свободного индекса.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "network",
			Name:      "bytes_received_total",
			Help:      "Принятые байты (с заголовками кадров).",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packetguard",
			Subsystem: "network",
			Name:      "bytes_sent_total",
			Help:      "Отправленные байты.",
		}),
	}
	reg.MustRegister(
		m.packets, m.decodeErrors, m.verdicts, m.hooked, m.latency,
		m.disabled, m.panics, m.connections, m.rejectedFull, m.bytesIn, m.bytesOut,
	)
	return m
}

// nil-безопасные обертки: метрики необязательны для диспетчера и тестов.

func (m *Metrics) frame(f protocol.Frame) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(f.Kind.String()).Inc()
	m.bytesIn.Add(float64(len(f.Payload) + 5))
}

func (m *Metrics) decodeError(kind protocol.Kind) {
	if m != nil {
		m.decodeErrors.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) hookHandled(kind protocol.Kind) {
	if m != nil {
		m.hooked.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) result(res guard.Result, took time.Duration) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(res.Kind.String(), res.Outcome.String(), res.Check).Inc()
	m.latency.WithLabelValues(res.Kind.String()).Observe(took.Seconds())
	if res.Disabled {
		m.disabled.Inc()
	}
}

func (m *Metrics) recovered() {
	if m != nil {
		m.panics.Inc()
	}
}

func (m *Metrics) sent(n int) {
	if m != nil {
		m.bytesOut.Add(float64(n))
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) serverFull() {
	if m != nil {
		m.rejectedFull.Inc()
	}
}
