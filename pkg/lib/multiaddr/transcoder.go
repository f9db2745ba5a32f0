package multiaddr

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Transcoder 定义协议数据的编解码方法
type Transcoder interface {
	// StringToBytes 将字符串值转换为字节
	StringToBytes(string) ([]byte, error)

	// BytesToString 将字节转换为字符串值
	BytesToString([]byte) (string, error)

	// ValidateBytes 验证字节数据是否有效
	ValidateBytes([]byte) error
}

type transcoder struct {
	s2b func(string) ([]byte, error)
	b2s func([]byte) (string, error)
	val func([]byte) error
}

func (t transcoder) StringToBytes(s string) ([]byte, error) { return t.s2b(s) }
func (t transcoder) BytesToString(b []byte) (string, error) {
	if err := t.ValidateBytes(b); err != nil {
		return "", err
	}
	return t.b2s(b)
}
func (t transcoder) ValidateBytes(b []byte) error { return t.val(b) }

// 内置 Transcoder
var (
	TranscoderIP4    Transcoder = transcoder{ip4StringToBytes, ipBytesToString, fixedLen(net.IPv4len)}
	TranscoderIP6    Transcoder = transcoder{ip6StringToBytes, ipBytesToString, fixedLen(net.IPv6len)}
	TranscoderPort   Transcoder = transcoder{portStringToBytes, portBytesToString, fixedLen(2)}
	TranscoderDNS    Transcoder = transcoder{dnsStringToBytes, plainBytesToString, dnsValidate}
	TranscoderMemory Transcoder = transcoder{memoryStringToBytes, plainBytesToString, memoryValidate}
)

func fixedLen(n int) func([]byte) error {
	return func(b []byte) error {
		if len(b) != n {
			return fmt.Errorf("%w: length %d, want %d", ErrInvalidValue, len(b), n)
		}
		return nil
	}
}

// ============================================================================
//                              IP
// ============================================================================

func ip4StringToBytes(s string) ([]byte, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: ip4 %q", ErrInvalidValue, s)
	}
	return []byte(ip), nil
}

func ip6StringToBytes(s string) ([]byte, error) {
	// 拒绝 IPv4 点分格式，避免同一地址有两种写法
	if !strings.Contains(s, ":") {
		return nil, fmt.Errorf("%w: ip6 %q", ErrInvalidValue, s)
	}
	ip := net.ParseIP(s).To16()
	if ip == nil {
		return nil, fmt.Errorf("%w: ip6 %q", ErrInvalidValue, s)
	}
	return []byte(ip), nil
}

func ipBytesToString(b []byte) (string, error) {
	ip := net.IP(b)
	if len(b) == net.IPv6len {
		// IPv4-mapped IPv6 地址保持 ip6 形式
		if ip4 := ip.To4(); ip4 != nil {
			return "::ffff:" + ip4.String(), nil
		}
	}
	return ip.String(), nil
}

// ============================================================================
//                              端口
// ============================================================================

func portStringToBytes(s string) ([]byte, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: port %q", ErrInvalidValue, s)
	}
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(port))
	return b, nil
}

func portBytesToString(b []byte) (string, error) {
	return strconv.Itoa(int(binary.BigEndian.Uint16(b))), nil
}

// ============================================================================
//                              DNS / memory
// ============================================================================

const (
	maxDNSLen    = 253
	maxMemoryLen = 64
)

func plainBytesToString(b []byte) (string, error) {
	return string(b), nil
}

func dnsStringToBytes(s string) ([]byte, error) {
	b := []byte(s)
	if err := dnsValidate(b); err != nil {
		return nil, err
	}
	return b, nil
}

func dnsValidate(b []byte) error {
	if len(b) == 0 || len(b) > maxDNSLen {
		return fmt.Errorf("%w: dns name length %d", ErrInvalidValue, len(b))
	}
	for _, c := range b {
		if !isDNSChar(c) {
			return fmt.Errorf("%w: dns name %q", ErrInvalidValue, b)
		}
	}
	return nil
}

func isDNSChar(c byte) bool {
	return c == '-' || c == '.' || c == '_' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func memoryStringToBytes(s string) ([]byte, error) {
	b := []byte(s)
	if err := memoryValidate(b); err != nil {
		return nil, err
	}
	return b, nil
}

// memoryValidate 内存地址名：1-64 个字母、数字、'-'、'_'、'.'
func memoryValidate(b []byte) error {
	if len(b) == 0 || len(b) > maxMemoryLen {
		return fmt.Errorf("%w: memory name length %d", ErrInvalidValue, len(b))
	}
	for _, c := range b {
		if !isDNSChar(c) {
			return fmt.Errorf("%w: memory name %q", ErrInvalidValue, b)
		}
	}
	return nil
}
