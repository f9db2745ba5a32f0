// Package quic 实现基于 QUIC 的通道提供者
//
// 地址形式为 /<ip4|ip6>/<host>/udp/<port>/quic-v1。
//
// 每个 QUIC 连接承载恰好一个双向流，该流即 transport.DataChannel。
// 拨号方打开流后立即写入一个前导字节，使监听方无需等待上层数据
// 即可 Accept。CloseWrite 对应流的 FIN；Close 以应用错误码 0 关闭
// 整个连接，对端读到 io.EOF，尚未确认的数据可能丢失，需要可靠
// 送达时应先 CloseWrite 并等待对端关闭。
//
// TLS 只提供链路加密：证书为每个 Provider 临时生成的自签名证书，
// 身份认证由上层握手完成。
//
// 监听器拥有 UDP socket；关闭监听器后，已接受的连接继续工作，
// 最后一个连接关闭时释放 socket。
package quic
