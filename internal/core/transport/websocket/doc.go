// Package websocket 实现基于 WebSocket 的通道提供者
//
// 地址形式为 /<ip4|ip6|dns4|dns6>/<host>/tcp/<port>/ws。
//
// WebSocket 以消息为单位，Conn 把它还原为字节流：
//
//	Binary 消息   数据
//	Text 空消息   写半关闭标记，对端读到 io.EOF
//	Close 控制帧  连接关闭
//
// 协议本身的 Close 握手是全关闭，因此半关闭使用独立的标记消息。
package websocket
