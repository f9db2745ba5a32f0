package websocket

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("core/transport/websocket")

// Name 提供者名称
const Name = "websocket"

// Config WebSocket 配置
type Config struct {
	// HandshakeTimeout HTTP 升级超时
	HandshakeTimeout time.Duration

	// ReadBufferSize / WriteBufferSize 传给 gorilla 的缓冲区大小
	ReadBufferSize  int
	WriteBufferSize int

	// Path 升级请求路径
	Path string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		Path:             "/",
	}
}

// Provider WebSocket 通道提供者
type Provider struct {
	cfg Config
}

var _ network.ChannelProvider = (*Provider)(nil)

// New 创建提供者
func New(cfg Config) *Provider {
	def := DefaultConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	return &Provider{cfg: cfg}
}

// Name 返回 "websocket"
func (p *Provider) Name() string { return Name }

// CanDial 是否为 /<ip|dns>/<host>/tcp/<port>/ws
func (p *Provider) CanDial(addr types.Address) bool {
	protos := addr.Protocols()
	if len(protos) != 3 || protos[1] != "tcp" || protos[2] != "ws" {
		return false
	}
	switch protos[0] {
	case "ip4", "ip6", "dns4", "dns6":
		return true
	}
	return false
}

// Dial 建立 WebSocket 连接
func (p *Provider) Dial(ctx context.Context, addr types.Address) (transport.DataChannel, error) {
	nw, hostport, err := p.dialArgs(addr)
	if err != nil {
		return nil, err
	}

	nd := net.Dialer{}
	d := websocket.Dialer{
		HandshakeTimeout: p.cfg.HandshakeTimeout,
		ReadBufferSize:   p.cfg.ReadBufferSize,
		WriteBufferSize:  p.cfg.WriteBufferSize,
		NetDialContext: func(ctx context.Context, _, a string) (net.Conn, error) {
			return nd.DialContext(ctx, nw, a)
		},
	}
	ws, resp, err := d.DialContext(ctx, "ws://"+hostport+p.cfg.Path, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	c, err := newConn(ws)
	if err != nil {
		ws.Close()
		return nil, err
	}
	logger.Debug("拨号成功", "remote", c.RemoteAddress())
	return c, nil
}

// Listen 绑定地址并启动 HTTP 升级服务
func (p *Provider) Listen(addr types.Address) (network.ChannelListener, error) {
	nw, hostport, err := p.dialArgs(addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen(nw, hostport)
	if err != nil {
		return nil, err
	}
	l, err := newListener(ln, p.cfg)
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
