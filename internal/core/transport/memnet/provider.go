package memnet

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	"github.com/dep2p/go-p2pnet/internal/core/transport/reliable"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("core/transport/memnet")

// Name 提供者名称
const Name = "memnet"

// DefaultBacklog 默认未接受连接队列长度
const DefaultBacklog = 16

// Config 模拟网络配置
type Config struct {
	// Reliable 每条链路的可靠传输配置
	Reliable reliable.Config

	// Faults 底层链路故障注入
	Faults memory.Faults

	// MTU 底层单元上限
	MTU int

	// InboxSize 底层接收队列长度
	InboxSize int

	// Backlog 每个监听器的未接受连接队列长度
	Backlog int
}

// DefaultConfig 返回默认配置（无故障）
func DefaultConfig() Config {
	return Config{
		Reliable:  reliable.DefaultConfig(),
		MTU:       memory.DefaultMTU,
		InboxSize: memory.DefaultInboxSize,
		Backlog:   DefaultBacklog,
	}
}

// Provider 模拟网络通道提供者
//
// 同时实现 transport.StatsSource，统计包含存活与已关闭链路的累计值。
type Provider struct {
	hub *memory.Hub
	cfg Config

	mu        sync.Mutex
	closed    bool
	listeners map[types.Address]*Listener
	live      map[*reliable.Stream]struct{}

	retiredSeq transport.SequenceStats
	retiredRet transport.RetryStats
	retiredInt transport.IntegrityStats
}

var (
	_ network.ChannelProvider = (*Provider)(nil)
	_ transport.StatsSource   = (*Provider)(nil)
)

// New 在 hub 上创建提供者，hub 为 nil 时新建
func New(hub *memory.Hub, cfg Config) *Provider {
	if hub == nil {
		hub = memory.NewHub()
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}
	return &Provider{
		hub:       hub,
		cfg:       cfg,
		listeners: make(map[types.Address]*Listener),
		live:      make(map[*reliable.Stream]struct{}),
	}
}

// Name 返回 "memnet"
func (p *Provider) Name() string { return Name }

// Hub 返回底层 Hub
func (p *Provider) Hub() *memory.Hub { return p.hub }

// CanDial 是否为 /memory/<name>
func (p *Provider) CanDial(addr types.Address) bool {
	protos := addr.Protocols()
	return len(protos) == 1 && protos[0] == "memory"
}

// ============================================================================
//                              拨号与监听
// ============================================================================

// Dial 连接到 addr 上的监听者
func (p *Provider) Dial(ctx context.Context, addr types.Address) (transport.DataChannel, error) {
	if !p.CanDial(addr) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddress, addr)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrProviderClosed
	}
	l := p.listeners[addr]
	p.mu.Unlock()
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionRefused, addr)
	}

	id := uuid.NewString()
	clientEP := types.MustParseAddress("/memory/c-" + id)
	serverEP := types.MustParseAddress("/memory/s-" + id)

	client, err := p.newStream(ctx, clientEP, serverEP, p.cfg.Faults.Seed, clientEP, addr)
	if err != nil {
		return nil, err
	}
	server, err := p.newStream(ctx, serverEP, clientEP, seedFor(p.cfg.Faults.Seed), addr, clientEP)
	if err != nil {
		client.Close()
		return nil, err
	}

	if err := l.enqueue(ctx, server); err != nil {
		server.Close()
		client.Close()
		return nil, err
	}
	logger.Debug("模拟链路已建立", "local", clientEP, "remote", addr)
	return client, nil
}

// Listen 在 addr 上注册监听者
func (p *Provider) Listen(addr types.Address) (network.ChannelListener, error) {
	if !p.CanDial(addr) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddress, addr)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	if _, ok := p.listeners[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}
	l := newListener(p, addr, p.cfg.Backlog)
	p.listeners[addr] = l
	logger.Info("开始监听", "addr", addr)
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
	for _, l := range p.listeners {
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

// newStream 创建单端链路：底层端点 + 可靠栈 + 字节流
//
// ep/peer 为底层端点地址，local/remote 为流对外呈现的地址。
func (p *Provider) newStream(ctx context.Context, ep, peer types.Address, seed uint64, local, remote types.Address) (*reliable.Stream, error) {
	faults := p.cfg.Faults
	faults.Seed = seed
	lower, err := memory.Create(ctx, memory.InitData{
		Hub:       p.hub,
		Local:     ep,
		Remote:    peer,
		Faults:    faults,
		MTU:       p.cfg.MTU,
		InboxSize: p.cfg.InboxSize,
	})
	if err != nil {
		return nil, err
	}
	rt, err := reliable.New(lower, p.cfg.Reliable)
	if err != nil {
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

func (p *Provider) removeListener(addr types.Address, l *Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listeners[addr] == l {
		delete(p.listeners, addr)
	}
}

// seedFor 服务端使用与客户端不同的种子，0 保持随机
func seedFor(seed uint64) uint64 {
	if seed == 0 {
		return 0
	}
	return seed + 1
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
