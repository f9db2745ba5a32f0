package udpnet

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pnet/internal/core/transport/reliable"
	"github.com/dep2p/go-p2pnet/internal/core/transport/udp"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("core/transport/udpnet")

// Name 提供者名称
const Name = "udp"

// Config UDP 提供者配置
type Config struct {
	// Reliable 每条链路的可靠传输配置
	Reliable reliable.Config

	// MTU 数据报载荷上限
	MTU int

	// InboxSize 监听侧每个对端的接收队列长度
	InboxSize int

	// Backlog 监听侧未接受链路队列长度
	Backlog int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Reliable:  reliable.DefaultConfig(),
		MTU:       udp.DefaultMTU,
		InboxSize: udp.DefaultInboxSize,
		Backlog:   udp.DefaultBacklog,
	}
}

// Provider UDP 通道提供者
//
// 同时实现 transport.StatsSource，统计包含存活与已关闭链路的累计值。
type Provider struct {
	cfg Config

	mu        sync.Mutex
	closed    bool
	listeners map[*Listener]struct{}
	live      map[*reliable.Stream]struct{}

	retiredSeq transport.SequenceStats
	retiredRet transport.RetryStats
	retiredInt transport.IntegrityStats
}

var (
	_ network.ChannelProvider = (*Provider)(nil)
	_ transport.StatsSource   = (*Provider)(nil)
)

// New 创建提供者
func New(cfg Config) *Provider {
	if cfg.MTU <= 0 {
		cfg.MTU = udp.DefaultMTU
	}
	return &Provider{
		cfg:       cfg,
		listeners: make(map[*Listener]struct{}),
		live:      make(map[*reliable.Stream]struct{}),
	}
}

// Name 返回 "udp"
func (p *Provider) Name() string { return Name }

// CanDial 是否为 /<ip4|ip6>/<host>/udp/<port>
func (p *Provider) CanDial(addr types.Address) bool {
	protos := addr.Protocols()
	return len(protos) == 2 && (protos[0] == "ip4" || protos[0] == "ip6") && protos[1] == "udp"
}

// ============================================================================
//                              拨号与监听
// ============================================================================

// Dial 打开到 addr 的链路
//
// 只绑定本端套接字，不等待对端应答。
func (p *Provider) Dial(ctx context.Context, addr types.Address) (transport.DataChannel, error) {
	if !p.CanDial(addr) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddress, addr)
	}
	if p.isClosed() {
		return nil, ErrProviderClosed
	}

	lower, err := udp.Create(ctx, udp.InitData{Remote: addr, MTU: p.cfg.MTU})
	if err != nil {
		return nil, err
	}
	s, err := p.newStream(lower, lower.LocalAddress(), addr)
	if err != nil {
		return nil, err
	}
	logger.Debug("UDP 链路已建立", "local", lower.LocalAddress(), "remote", addr)
	return s, nil
}

// Listen 在 addr 上监听，端口 0 由内核分配
func (p *Provider) Listen(addr types.Address) (network.ChannelListener, error) {
	if !p.CanDial(addr) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddress, addr)
	}
	if p.isClosed() {
		return nil, ErrProviderClosed
	}

	mux, err := udp.Listen(context.Background(), udp.ListenData{
		Local:     addr,
		MTU:       p.cfg.MTU,
		InboxSize: p.cfg.InboxSize,
		Backlog:   p.cfg.Backlog,
	})
	if err != nil {
		return nil, err
	}
	l := &Listener{p: p, mux: mux}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		mux.Close()
		return nil, ErrProviderClosed
	}
	p.listeners[l] = struct{}{}
	p.mu.Unlock()
	return l, nil
}

// Close 关闭所有监听者与存活链路
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	listeners := make([]*Listener, 0, len(p.listeners))
	for l := range p.listeners {
		listeners = append(listeners, l)
	}
	streams := make([]*reliable.Stream, 0, len(p.live))
	for s := range p.live {
		streams = append(streams, s)
	}
	p.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	for _, s := range streams {
		err = multierr.Append(err, s.Close())
	}
	return err
}

func (p *Provider) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// newStream 在底层端点之上包装可靠栈与字节流，失败时关闭 lower
func (p *Provider) newStream(lower transport.LossyTransport, local, remote types.Address) (*reliable.Stream, error) {
	rt, err := reliable.New(lower, p.cfg.Reliable)
	if err != nil {
		lower.Close()
		return nil, err
	}

	var s *reliable.Stream
	s = reliable.NewStream(rt, local, remote, reliable.WithOnClose(func() { p.retire(s) }))

	p.mu.Lock()
	p.live[s] = struct{}{}
	p.mu.Unlock()
	return s, nil
}

// retire 把关闭链路的统计并入累计值
func (p *Provider) retire(s *reliable.Stream) {
	rt := s.Transport()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.live[s]; !ok {
		return
	}
	delete(p.live, s)
	p.retiredSeq = p.retiredSeq.Add(rt.SequenceStats())
	p.retiredRet = p.retiredRet.Add(rt.RetryStats())
	p.retiredInt = p.retiredInt.Add(rt.IntegrityStats())
}

func (p *Provider) removeListener(l *Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners, l)
}

// ============================================================================
//                              统计
// ============================================================================

// SequenceStats 排序层累计统计
func (p *Provider) SequenceStats() transport.SequenceStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.retiredSeq
	for s := range p.live {
		total = total.Add(s.Transport().SequenceStats())
	}
	return total
}

// RetryStats 确认层累计统计
func (p *Provider) RetryStats() transport.RetryStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.retiredRet
	for s := range p.live {
		total = total.Add(s.Transport().RetryStats())
	}
	return total
}

// IntegrityStats 校验层累计统计
func (p *Provider) IntegrityStats() transport.IntegrityStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.retiredInt
	for s := range p.live {
		total = total.Add(s.Transport().IntegrityStats())
	}
	return total
}

// Live 存活链路端数
func (p *Provider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
