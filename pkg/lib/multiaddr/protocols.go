package multiaddr

import "github.com/multiformats/go-varint"

// Protocol 描述一个地址协议
type Protocol struct {
	// Name 协议名称（如 "ip4", "tcp"）
	Name string

	// Code 协议代码
	Code int

	// VCode 预计算的 varint 编码
	VCode []byte

	// Size 协议数据大小（位）
	// 0 表示无数据
	// -1 表示变长（length-prefixed）
	Size int

	// Transcoder 编解码器，Size 为 0 时为 nil
	Transcoder Transcoder
}

// String 返回协议名称
func (p Protocol) String() string {
	return p.Name
}

// LengthPrefixedVarSize 表示变长数据（使用 varint 前缀）
const LengthPrefixedVarSize = -1

// 协议代码常量（与 multiformats/multicodec 对齐）
const (
	P_IP4     = 0x0004
	P_TCP     = 0x0006
	P_IP6     = 0x0029
	P_DNS4    = 0x0036
	P_DNS6    = 0x0037
	P_UDP     = 0x0111
	P_MEMORY  = 0x0309
	P_QUIC_V1 = 0x01CD
	P_WS      = 0x01DD
)

func newProtocol(name string, code, size int, t Transcoder) Protocol {
	return Protocol{
		Name:       name,
		Code:       code,
		VCode:      varint.ToUvarint(uint64(code)),
		Size:       size,
		Transcoder: t,
	}
}

var (
	protoIP4    = newProtocol("ip4", P_IP4, 32, TranscoderIP4)
	protoIP6    = newProtocol("ip6", P_IP6, 128, TranscoderIP6)
	protoDNS4   = newProtocol("dns4", P_DNS4, LengthPrefixedVarSize, TranscoderDNS)
	protoDNS6   = newProtocol("dns6", P_DNS6, LengthPrefixedVarSize, TranscoderDNS)
	protoTCP    = newProtocol("tcp", P_TCP, 16, TranscoderPort)
	protoUDP    = newProtocol("udp", P_UDP, 16, TranscoderPort)
	protoQUICV1 = newProtocol("quic-v1", P_QUIC_V1, 0, nil)
	protoWS     = newProtocol("ws", P_WS, 0, nil)
	protoMemory = newProtocol("memory", P_MEMORY, LengthPrefixedVarSize, TranscoderMemory)
)

// protocols 协议注册表（按代码索引）
var protocols = map[int]Protocol{}

// protocolsByName 协议注册表（按名称索引）
var protocolsByName = map[string]Protocol{}

func init() {
	for _, p := range []Protocol{
		protoIP4, protoIP6, protoDNS4, protoDNS6,
		protoTCP, protoUDP, protoQUICV1, protoWS, protoMemory,
	} {
		protocols[p.Code] = p
		protocolsByName[p.Name] = p
	}
}

// ProtocolWithCode 根据协议代码获取协议
// 如果协议不存在，返回零值协议（Code = 0）
func ProtocolWithCode(code int) Protocol {
	return protocols[code]
}

// ProtocolWithName 根据协议名称获取协议
// 如果协议不存在，返回零值协议（Code = 0）
func ProtocolWithName(name string) Protocol {
	return protocolsByName[name]
}
