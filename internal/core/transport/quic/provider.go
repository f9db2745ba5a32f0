package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("core/transport/quic")

// Name 提供者名称
const Name = "quic"

// preamble 拨号方在新流上写入的第一个字节
const preamble byte = 0x01

// Config QUIC 配置
type Config struct {
	// HandshakeIdleTimeout QUIC 握手超时
	HandshakeIdleTimeout time.Duration

	// MaxIdleTimeout 连接空闲超时
	MaxIdleTimeout time.Duration

	// KeepAlivePeriod 保活间隔，0 禁用
	KeepAlivePeriod time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HandshakeIdleTimeout: 5 * time.Second,
		MaxIdleTimeout:       30 * time.Second,
		KeepAlivePeriod:      10 * time.Second,
	}
}

// Provider QUIC 通道提供者
type Provider struct {
	cfg       Config
	qcfg      *quic.Config
	serverTLS *tls.Config
	clientTLS *tls.Config
}

var _ network.ChannelProvider = (*Provider)(nil)

// New 创建提供者并生成临时证书
func New(cfg Config) (*Provider, error) {
	serverTLS, clientTLS, err := newTLSConfigs()
	if err != nil {
		return nil, err
	}
	return &Provider{
		cfg: cfg,
		qcfg: &quic.Config{
			HandshakeIdleTimeout: cfg.HandshakeIdleTimeout,
			MaxIdleTimeout:       cfg.MaxIdleTimeout,
			KeepAlivePeriod:      cfg.KeepAlivePeriod,
			// 每个连接只有拨号方打开的一个双向流
			MaxIncomingStreams:    1,
			MaxIncomingUniStreams: -1,
		},
		serverTLS: serverTLS,
		clientTLS: clientTLS,
	}, nil
}

// Name 返回 "quic"
func (p *Provider) Name() string { return Name }

// CanDial 是否为 /<ip4|ip6>/<host>/udp/<port>/quic-v1
func (p *Provider) CanDial(addr types.Address) bool {
	protos := addr.Protocols()
	return len(protos) == 3 &&
		(protos[0] == "ip4" || protos[0] == "ip6") &&
		protos[1] == "udp" && protos[2] == "quic-v1"
}

// Dial 建立 QUIC 连接并打开唯一的流
func (p *Provider) Dial(ctx context.Context, addr types.Address) (transport.DataChannel, error) {
	_, hostport, err := p.dialArgs(addr)
	if err != nil {
		return nil, err
	}

	qc, err := quic.DialAddr(ctx, hostport, p.clientTLS, p.qcfg)
	if err != nil {
		return nil, err
	}
	st, err := qc.OpenStreamSync(ctx)
	if err != nil {
		qc.CloseWithError(0, "")
		return nil, err
	}
	if _, err := st.Write([]byte{preamble}); err != nil {
		qc.CloseWithError(0, "")
		return nil, err
	}

	c, err := newConn(qc, st, nil)
	if err != nil {
		qc.CloseWithError(0, "")
		return nil, err
	}
	logger.Debug("拨号成功", "remote", c.RemoteAddress())
	return c, nil
}

// Listen 绑定 UDP 地址
func (p *Provider) Listen(addr types.Address) (network.ChannelListener, error) {
	nw, hostport, err := p.dialArgs(addr)
	if err != nil {
		return nil, err
	}
	laddr, err := net.ResolveUDPAddr(nw, hostport)
	if err != nil {
		return nil, err
	}
	udp, err := net.ListenUDP(nw, laddr)
	if err != nil {
		return nil, err
	}

	tr := &quic.Transport{Conn: udp}
	ql, err := tr.Listen(p.serverTLS, p.qcfg)
	if err != nil {
		tr.Close()
		udp.Close()
		return nil, err
	}
	l, err := newListener(tr, udp, ql, p.cfg.HandshakeIdleTimeout)
	if err != nil {
		ql.Close()
		tr.Close()
		udp.Close()
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
