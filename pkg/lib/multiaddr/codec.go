package multiaddr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/multiformats/go-varint"
)

// Component 地址中的一个协议组件
type Component struct {
	Protocol Protocol
	// Raw 协议数据的二进制形式（无长度前缀）
	Raw []byte
}

// Value 返回组件值的字符串形式，无数据的协议返回空串
func (c Component) Value() string {
	if c.Protocol.Transcoder == nil {
		return ""
	}
	s, _ := c.Protocol.Transcoder.BytesToString(c.Raw)
	return s
}

// String 返回 "/name[/value]"
func (c Component) String() string {
	if c.Protocol.Size == 0 {
		return "/" + c.Protocol.Name
	}
	return "/" + c.Protocol.Name + "/" + c.Value()
}

// StringToBytes 将地址字符串转换为规范二进制格式
func StringToBytes(s string) ([]byte, error) {
	s = strings.TrimRight(s, "/")
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidMultiaddr)
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("%w: must begin with /", ErrInvalidMultiaddr)
	}

	var buf bytes.Buffer
	parts := strings.Split(s[1:], "/")
	for len(parts) > 0 {
		name := parts[0]
		proto := ProtocolWithName(name)
		if proto.Code == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
		}
		buf.Write(proto.VCode)
		parts = parts[1:]

		if proto.Size == 0 {
			continue
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: protocol %s requires a value", ErrInvalidMultiaddr, name)
		}

		value, err := proto.Transcoder.StringToBytes(parts[0])
		if err != nil {
			return nil, err
		}
		if proto.Size == LengthPrefixedVarSize {
			buf.Write(varint.ToUvarint(uint64(len(value))))
		}
		buf.Write(value)
		parts = parts[1:]
	}
	return buf.Bytes(), nil
}

// BytesToString 将二进制格式转换为规范字符串，同时完成校验
func BytesToString(b []byte) (string, error) {
	comps, err := Components(b)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range comps {
		sb.WriteString(c.String())
	}
	return sb.String(), nil
}

// Validate 校验二进制地址的每一个组件
func Validate(b []byte) error {
	_, err := Components(b)
	return err
}

// Components 拆分并校验二进制地址
//
// 返回的 Raw 切片引用 b 的底层数组。
func Components(b []byte) ([]Component, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidMultiaddr)
	}

	var comps []Component
	for len(b) > 0 {
		code, n, err := varint.FromUvarint(b)
		if err != nil {
			return nil, fmt.Errorf("%w: protocol code: %v", ErrInvalidMultiaddr, err)
		}
		b = b[n:]

		proto := ProtocolWithCode(int(code))
		if proto.Code == 0 {
			return nil, fmt.Errorf("%w: code 0x%x", ErrUnknownProtocol, code)
		}

		size, err := sizeForAddr(proto, &b)
		if err != nil {
			return nil, err
		}
		if len(b) < size {
			return nil, fmt.Errorf("%w: protocol %s needs %d bytes, have %d", ErrTruncated, proto.Name, size, len(b))
		}

		raw := b[:size:size]
		b = b[size:]
		if proto.Transcoder != nil {
			if err := proto.Transcoder.ValidateBytes(raw); err != nil {
				return nil, fmt.Errorf("protocol %s: %w", proto.Name, err)
			}
		}
		comps = append(comps, Component{Protocol: proto, Raw: raw})
	}
	return comps, nil
}

// sizeForAddr 计算协议数据部分的字节数，变长协议会消费长度前缀
func sizeForAddr(proto Protocol, b *[]byte) (int, error) {
	switch proto.Size {
	case 0:
		return 0, nil
	case LengthPrefixedVarSize:
		length, n, err := varint.FromUvarint(*b)
		if err != nil {
			return 0, fmt.Errorf("%w: length of %s: %v", ErrInvalidMultiaddr, proto.Name, err)
		}
		*b = (*b)[n:]
		if length > uint64(len(*b)) {
			return 0, fmt.Errorf("%w: protocol %s declares %d bytes", ErrTruncated, proto.Name, length)
		}
		return int(length), nil
	default:
		return proto.Size / 8, nil
	}
}

// ValueForProtocol 返回第一个匹配协议的值
func ValueForProtocol(b []byte, code int) (string, error) {
	comps, err := Components(b)
	if err != nil {
		return "", err
	}
	for _, c := range comps {
		if c.Protocol.Code == code {
			return c.Value(), nil
		}
	}
	return "", fmt.Errorf("%w: 0x%x", ErrNoSuchProtocol, code)
}

// ProtocolNames 返回地址中的协议名序列，如 ["ip4", "tcp"]
func ProtocolNames(b []byte) ([]string, error) {
	comps, err := Components(b)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(comps))
	for i, c := range comps {
		names[i] = c.Protocol.Name
	}
	return names, nil
}
