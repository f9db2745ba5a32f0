package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// Name 提供者名称
const Name = "tcp"

// Config TCP 配置
type Config struct {
	// DialTimeout 拨号超时（ctx 更早结束时以 ctx 为准）
	DialTimeout time.Duration

	// KeepAlive TCP keep-alive 周期，负值禁用
	KeepAlive time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		KeepAlive:   15 * time.Second,
	}
}

// Provider TCP 通道提供者
type Provider struct {
	cfg Config
}

var _ network.ChannelProvider = (*Provider)(nil)

// New 创建提供者
func New(cfg Config) *Provider {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	return &Provider{cfg: cfg}
}

// Name 返回 "tcp"
func (p *Provider) Name() string { return Name }

// CanDial 是否为 /<ip|dns>/<host>/tcp/<port>
func (p *Provider) CanDial(addr types.Address) bool {
	protos := addr.Protocols()
	return len(protos) == 2 && isHostProtocol(protos[0]) && protos[1] == "tcp"
}

// Dial 建立 TCP 连接
func (p *Provider) Dial(ctx context.Context, addr types.Address) (transport.DataChannel, error) {
	nw, hostport, err := p.dialArgs(addr)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: p.cfg.DialTimeout, KeepAlive: p.cfg.KeepAlive}
	c, err := d.DialContext(ctx, nw, hostport)
	if err != nil {
		return nil, err
	}
	conn, err := newConn(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	logger.Debug("拨号成功", "remote", conn.RemoteAddress())
	return conn, nil
}

// Listen 绑定地址
func (p *Provider) Listen(addr types.Address) (network.ChannelListener, error) {
	nw, hostport, err := p.dialArgs(addr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{KeepAlive: p.cfg.KeepAlive}
	ln, err := lc.Listen(context.Background(), nw, hostport)
	if err != nil {
		return nil, err
	}
	l, err := newListener(ln)
	if err != nil {
		ln.Close()
		return nil, err
	}
	logger.Info("开始监听", "addr", l.Addr())
	return l, nil
}

func (p *Provider) dialArgs(addr types.Address) (string, string, error) {
	if !p.CanDial(addr) {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedAddress, addr)
	}
	return multiaddr.DialArgs(addr.Bytes())
}

func isHostProtocol(name string) bool {
	switch name {
	case "ip4", "ip6", "dns4", "dns6":
		return true
	}
	return false
}
