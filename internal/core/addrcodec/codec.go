package addrcodec

import (
	"fmt"
	"net"
	"strings"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// DefaultPatterns 默认支持的协议栈
var DefaultPatterns = []string{
	"ip4|ip6|dns4|dns6/tcp",
	"ip4|ip6|dns4|dns6/tcp/ws",
	"ip4|ip6/udp",
	"ip4|ip6/udp/quic-v1",
	"memory",
}

// Config 编解码器配置
type Config struct {
	// Patterns 允许的协议栈，空表示 DefaultPatterns
	Patterns []string

	// AllowLoopback 是否允许 127.0.0.0/8 与 ::1
	AllowLoopback bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Patterns:      DefaultPatterns,
		AllowLoopback: true,
	}
}

// pattern 编译后的模式，每段是候选协议名集合
type pattern [][]string

func (p pattern) match(protos []string) bool {
	if len(protos) != len(p) {
		return false
	}
	for i, alts := range p {
		ok := false
		for _, a := range alts {
			if protos[i] == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func compile(s string) (pattern, error) {
	segs := strings.Split(strings.Trim(s, "/"), "/")
	p := make(pattern, 0, len(segs))
	for _, seg := range segs {
		alts := strings.Split(seg, "|")
		for _, a := range alts {
			if multiaddr.ProtocolWithName(a).Code == 0 {
				return nil, fmt.Errorf("%w: unknown protocol %q in %q", ErrInvalidPattern, a, s)
			}
		}
		p = append(p, alts)
	}
	return p, nil
}

// Codec 按模式校验的地址编解码器
type Codec struct {
	patterns      []pattern
	allowLoopback bool
}

var _ network.AddressCodec = (*Codec)(nil)

// New 创建编解码器
func New(cfg Config) (*Codec, error) {
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultPatterns
	}
	c := &Codec{allowLoopback: cfg.AllowLoopback}
	for _, s := range cfg.Patterns {
		p, err := compile(s)
		if err != nil {
			return nil, err
		}
		c.patterns = append(c.patterns, p)
	}
	return c, nil
}

// Default 返回使用默认配置的编解码器
func Default() *Codec {
	c, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return c
}

// Parse 解析可读形式并校验
func (c *Codec) Parse(s string) (types.Address, error) {
	a, err := types.ParseAddress(s)
	if err != nil {
		return types.Address{}, err
	}
	if err := c.Validate(a); err != nil {
		return types.Address{}, err
	}
	return a, nil
}

// Decode 解析紧凑二进制形式并校验
func (c *Codec) Decode(b []byte) (types.Address, error) {
	a, err := types.AddressFromBytes(b)
	if err != nil {
		return types.Address{}, err
	}
	if err := c.Validate(a); err != nil {
		return types.Address{}, err
	}
	return a, nil
}

// Validate 检查协议栈与主机部分
func (c *Codec) Validate(a types.Address) error {
	if a.IsZero() {
		return types.ErrEmptyAddress
	}
	protos := a.Protocols()
	matched := false
	for _, p := range c.patterns {
		if p.match(protos) {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("%w: %s", ErrUnsupportedStack, a)
	}

	if !c.allowLoopback && (protos[0] == "ip4" || protos[0] == "ip6") {
		code := multiaddr.P_IP4
		if protos[0] == "ip6" {
			code = multiaddr.P_IP6
		}
		host, err := a.ValueForProtocol(code)
		if err != nil {
			return err
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return fmt.Errorf("%w: %s", ErrLoopbackNotAllowed, a)
		}
	}
	return nil
}
