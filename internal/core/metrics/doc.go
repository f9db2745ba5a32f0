// Package metrics 提供 Prometheus 监控指标
//
// 两类指标：
//
//   - Metrics 实现网络的事件钩子，统计握手次数（按方向与结果）、
//     进行中的握手数和活跃监听器数。
//   - TransportCollector 在抓取时读取已注册的 StatsSource，导出
//     重传、否认、损坏丢弃、缺口、重复等可靠传输统计。
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	m, _ := metrics.New(reg)
//	n, in, _ := network.Init(ctx, cfg, deps, network.WithObserver(m))
//
//	tc := metrics.NewTransportCollector()
//	tc.Add("memnet", memnetProvider)
//	reg.MustRegister(tc)
package metrics
