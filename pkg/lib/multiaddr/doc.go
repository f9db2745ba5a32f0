// Package multiaddr 提供自描述网络地址的编解码
//
// 地址有两种等价表示：
//
// 字符串格式：
//
//	/ip4/127.0.0.1/tcp/4001
//	/ip6/::1/tcp/8080/ws
//	/ip4/192.168.1.1/udp/4001/quic-v1
//	/dns4/example.com/tcp/443
//	/memory/node-a
//
// 二进制格式：
//
//	[varint:protocol_code][varint:length?][data_bytes]...
//
// 二进制格式是规范形式：任何字符串经 StringToBytes 后再经 BytesToString，
// 得到唯一的规范字符串（如端口前导零被去除）。BytesToString 与 Validate
// 会校验每一个组件，非法输入一律返回错误。
//
// 协议代码与 multiformats/multicodec 对齐，varint 使用
// github.com/multiformats/go-varint 编码。
package multiaddr
