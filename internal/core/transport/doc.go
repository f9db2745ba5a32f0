// Package transport 组装通道提供者
//
// 子包分两层：
//
// 数据单元层（可靠传输栈）：
//
//   - memory      模拟数据报链路，可注入丢失、重复、乱序、损坏
//   - udp         真实 UDP 数据报
//   - checking    损坏检测（BLAKE3 或 Murmur3 摘要）
//   - byzantine   确认、否认与有界重传
//   - sequencing  序号、重排窗口与显式缺口
//   - reliable    三者组合的 ReliableTransport 以及其上的字节流
//
// 字节通道层（network.ChannelProvider）：
//
//   - tcp         /ip4/.../tcp/...
//   - websocket   /ip4/.../tcp/.../ws
//   - quic        /ip4/.../udp/.../quic-v1
//   - memnet      /memory/<name>，memory 链路上的可靠栈
//
// 本包的 Manager 按 Config 创建启用的提供者，并通过 fx 以
// `group:"providers"` 交给网络。
//
// # 使用示例
//
//	m, err := transport.NewManager(transport.NewConfig(), nil)
//	deps := network.Deps{Providers: m.Providers(), Handshaker: noise.Factory(noise.DefaultConfig())}
package transport
