package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-p2pnet/internal/core/network"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

const namespace = "p2pnet"

// 握手结果标签
const (
	resultOK       = "ok"
	resultFailed   = "failed"
	resultCanceled = "canceled"
)

// Metrics 网络事件指标
type Metrics struct {
	handshakes *prometheus.CounterVec
	inflight   *prometheus.GaugeVec
	listeners  prometheus.Gauge
}

var _ network.Observer = (*Metrics)(nil)

// New 创建并注册网络指标，reg 为 nil 时不注册
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "handshakes_total",
			Help:      "Completed handshakes by direction and result.",
		}, []string{"direction", "result"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "handshakes_in_flight",
			Help:      "Handshakes currently in progress.",
		}, []string{"direction"}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "listeners",
			Help:      "Bound listen addresses.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.handshakes, m.inflight, m.listeners} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// HandshakeStarted 握手开始
func (m *Metrics) HandshakeStarted(dir types.Direction) {
	m.inflight.WithLabelValues(dir.String()).Inc()
}

// HandshakeCompleted 握手结束
func (m *Metrics) HandshakeCompleted(dir types.Direction, err error) {
	m.inflight.WithLabelValues(dir.String()).Dec()
	m.handshakes.WithLabelValues(dir.String(), result(err)).Inc()
}

// ListenerOpened 监听器绑定
func (m *Metrics) ListenerOpened(types.Address) {
	m.listeners.Inc()
}

// ListenerClosed 监听器关闭
func (m *Metrics) ListenerClosed(types.Address) {
	m.listeners.Dec()
}

func result(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, context.Canceled):
		return resultCanceled
	default:
		return resultFailed
	}
}
