// Package udpnet 实现基于 UDP 的通道提供者
//
// 拨号侧为每条链路打开一个已连接的 UDP 套接字（udp.Transport），
// 监听侧在一个套接字上按来源地址分流（udp.Mux）。两端都在底层端点之上
// 包装完整的可靠传输栈（校验、确认、排序），以 reliable.Stream 的形式
// 交给调用方。链路没有单独的建立过程：第一个到达监听地址的数据报即生成
// 新的入站链路，对端不存在时由确认层的重传预算与空闲期限报告失败。
//
// 地址形式为 /ip4/<ip>/udp/<port> 或 /ip6/<ip>/udp/<port>。
package udpnet
