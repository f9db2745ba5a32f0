package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Registerer prometheus.Registerer `optional:"true"`
}

// Result Metrics 输出
type Result struct {
	fx.Out

	Metrics   *Metrics
	Collector *TransportCollector
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(provide),
)

func provide(p Params) (Result, error) {
	m, err := New(p.Registerer)
	if err != nil {
		return Result{}, err
	}
	tc := NewTransportCollector()
	if p.Registerer != nil {
		if err := p.Registerer.Register(tc); err != nil {
			return Result{}, err
		}
	}
	return Result{Metrics: m, Collector: tc}, nil
}
