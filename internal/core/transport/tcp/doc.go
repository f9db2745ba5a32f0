// Package tcp 实现基于 TCP 的通道提供者
//
// 支持的地址形式：
//
//	/ip4/<host>/tcp/<port>
//	/ip6/<host>/tcp/<port>
//	/dns4/<name>/tcp/<port>
//	/dns6/<name>/tcp/<port>
//
// 每个 TCP 连接即一个 transport.DataChannel，半关闭直接映射到
// TCP 的 FIN（CloseWrite）与 shutdown(SHUT_RD)（CloseRead）。
// 监听端口为 0 时，Listener.Addr 返回内核分配的实际端口。
package tcp
