// Package addrcodec 实现 network.AddressCodec
//
// 地址的两种编码（可读字符串与紧凑二进制）由 types.Address 提供，
// 本包在解码之后按协议栈模式校验地址是否可被网络使用。模式写作
// 以 "/" 分隔的协议名，每段可用 "|" 给出多个候选：
//
//	ip4|ip6|dns4|dns6/tcp
//	ip4|ip6|dns4|dns6/tcp/ws
//	ip4|ip6/udp/quic-v1
//	memory
package addrcodec
