package types

import (
	"fmt"
	"net"

	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
)

// ============================================================================
//                              Address - 网络地址
// ============================================================================

// Address 网络地址
//
// 内部保存规范二进制形式，因此相等的地址序列化结果相同，
// 可直接用 == 比较或作为 map 键。零值表示"无地址"。
//
// 两种编码互为逆运算：
//
//	ParseAddress(a.String()) == a
//	AddressFromBytes(a.Bytes()) == a
type Address struct {
	raw string
}

// ParseAddress 解析人类可读形式，如 "/ip4/127.0.0.1/tcp/4001"
func ParseAddress(s string) (Address, error) {
	b, err := multiaddr.StringToBytes(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address{raw: string(b)}, nil
}

// MustParseAddress 同 ParseAddress，失败时 panic，仅用于常量与测试
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes 解码紧凑二进制形式，逐组件校验
func AddressFromBytes(b []byte) (Address, error) {
	if err := multiaddr.Validate(b); err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	return Address{raw: string(b)}, nil
}

// AddressFromNetAddr 从 *net.TCPAddr / *net.UDPAddr 构造地址
//
// suffix 为追加的无数据协议名，如 "ws"、"quic-v1"。
func AddressFromNetAddr(a net.Addr, suffix ...string) (Address, error) {
	b, err := multiaddr.FromNetAddr(a, suffix...)
	if err != nil {
		return Address{}, err
	}
	return Address{raw: string(b)}, nil
}

// String 返回人类可读形式，零值返回空串
func (a Address) String() string {
	if a.raw == "" {
		return ""
	}
	s, err := multiaddr.BytesToString([]byte(a.raw))
	if err != nil {
		// 构造路径已校验，不可达
		return fmt.Sprintf("<invalid address %x>", a.raw)
	}
	return s
}

// Bytes 返回紧凑二进制形式（副本）
func (a Address) Bytes() []byte {
	return []byte(a.raw)
}

// IsZero 是否为零值
func (a Address) IsZero() bool {
	return a.raw == ""
}

// Equal 比较两个地址
func (a Address) Equal(other Address) bool {
	return a.raw == other.raw
}

// Protocols 返回协议名序列，如 ["ip4", "tcp"]
func (a Address) Protocols() []string {
	if a.IsZero() {
		return nil
	}
	names, _ := multiaddr.ProtocolNames([]byte(a.raw))
	return names
}

// ValueForProtocol 返回指定协议的值
func (a Address) ValueForProtocol(code int) (string, error) {
	if a.IsZero() {
		return "", ErrEmptyAddress
	}
	return multiaddr.ValueForProtocol([]byte(a.raw), code)
}

// MarshalText 实现 encoding.TextMarshaler
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (a *Address) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalBinary 实现 encoding.BinaryMarshaler
func (a Address) MarshalBinary() ([]byte, error) {
	return a.Bytes(), nil
}

// UnmarshalBinary 实现 encoding.BinaryUnmarshaler
func (a *Address) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := AddressFromBytes(b)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddresses 批量解析
func ParseAddresses(ss ...string) ([]Address, error) {
	out := make([]Address, 0, len(ss))
	for _, s := range ss {
		a, err := ParseAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
