package udp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// 监听默认值
const (
	DefaultInboxSize = 256
	DefaultBacklog   = 16

	// DefaultLinger 端点关闭后继续丢弃同一来源数据报的时长，
	// 避免迟到的重传在监听侧生成新的端点
	DefaultLinger = 5 * time.Second
)

// ListenData Mux 初始化数据
type ListenData struct {
	// Local 监听地址，端口 0 表示随机
	Local types.Address
	// MTU 单元上限，0 使用 DefaultMTU
	MTU int
	// InboxSize 每个端点的接收队列长度
	InboxSize int
	// Backlog 未接受端点队列长度，满时丢弃新来源的数据报
	Backlog int
	// Linger 关闭端点的来源地址保留时长，负数表示不保留
	Linger time.Duration
}

// MuxStats 分流统计
type MuxStats struct {
	Accepted uint64 // 新来源生成的端点数
	Refused  uint64 // 队列满或关闭中被丢弃的新来源数据报
	Lingered uint64 // 已关闭端点的迟到数据报
	Overflow uint64 // 端点接收队列满而丢弃的数据报
}

// Mux 共享一个 UDP 套接字的多对端分流器
type Mux struct {
	conn      *net.UDPConn
	mtu       int
	local     types.Address
	inboxSize int
	linger    time.Duration

	mu        sync.Mutex
	closed    bool
	peers     map[netip.AddrPort]*Endpoint
	lingering map[netip.AddrPort]time.Time

	accept    chan *Endpoint
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	accepted, refused, lingered, overflow atomic.Uint64
}

// Listen 绑定 data.Local 并开始分流
func Listen(ctx context.Context, data ListenData) (*Mux, error) {
	network, hostport, err := multiaddr.DialArgs(data.Local.Bytes())
	if err != nil || network[:3] != "udp" {
		return nil, &transport.InitError{Transport: "udp", Err: fmt.Errorf("%w: %s", ErrNotUDPAddress, data.Local)}
	}
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, network, hostport)
	if err != nil {
		return nil, &transport.InitError{Transport: "udp", Err: err}
	}
	conn := pc.(*net.UDPConn)
	local, err := multiaddr.FromNetAddr(conn.LocalAddr())
	if err != nil {
		conn.Close()
		return nil, &transport.InitError{Transport: "udp", Err: err}
	}

	mtu := data.MTU
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	if mtu > maxDatagram {
		mtu = maxDatagram
	}
	if data.InboxSize <= 0 {
		data.InboxSize = DefaultInboxSize
	}
	if data.Backlog <= 0 {
		data.Backlog = DefaultBacklog
	}
	if data.Linger == 0 {
		data.Linger = DefaultLinger
	}

	m := &Mux{
		conn:      conn,
		mtu:       mtu,
		local:     mustAddress(local),
		inboxSize: data.InboxSize,
		linger:    data.Linger,
		peers:     make(map[netip.AddrPort]*Endpoint),
		lingering: make(map[netip.AddrPort]time.Time),
		accept:    make(chan *Endpoint, data.Backlog),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	go m.readLoop()
	logger.Info("UDP 分流器开始监听", "local", m.local)
	return m, nil
}

// LocalAddress 实际绑定的地址
func (m *Mux) LocalAddress() types.Address { return m.local }

// Accept 取出下一个新来源的端点
func (m *Mux) Accept() (*Endpoint, error) {
	select {
	case ep := <-m.accept:
		return ep, nil
	case <-m.done:
		return nil, transport.ErrClosed
	}
}

// Stats 返回统计快照
func (m *Mux) Stats() MuxStats {
	return MuxStats{
		Accepted: m.accepted.Load(),
		Refused:  m.refused.Load(),
		Lingered: m.lingered.Load(),
		Overflow: m.overflow.Load(),
	}
}

// Close 关闭套接字与全部端点，未被接受的端点一并关闭
func (m *Mux) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		peers := make([]*Endpoint, 0, len(m.peers))
		for _, ep := range m.peers {
			peers = append(peers, ep)
		}
		m.mu.Unlock()

		close(m.done)
		err = m.conn.Close()
		<-m.loopDone
		for _, ep := range peers {
			ep.Close()
		}
		logger.Info("UDP 分流器已关闭", "local", m.local)
	})
	return err
}

func (m *Mux) readLoop() {
	defer close(m.loopDone)

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := m.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, syscall.ECONNREFUSED) {
				continue
			}
			select {
			case <-m.done:
			default:
				logger.Warn("UDP 分流器读取失败", "local", m.local, "error", err)
			}
			return
		}
		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
		ep := m.lookup(from)
		if ep == nil {
			continue
		}
		if !ep.deliver(append([]byte(nil), buf[:n]...)) {
			m.overflow.Add(1)
		}
	}
}

// lookup 返回来源对应的端点，新来源时创建并放入接受队列
func (m *Mux) lookup(from netip.AddrPort) *Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ep := m.peers[from]; ep != nil {
		return ep
	}
	if m.closed {
		m.refused.Add(1)
		return nil
	}
	if until, ok := m.lingering[from]; ok {
		if time.Now().Before(until) {
			m.lingered.Add(1)
			return nil
		}
		delete(m.lingering, from)
	}

	remote, err := multiaddr.FromNetAddr(net.UDPAddrFromAddrPort(from))
	if err != nil {
		return nil
	}
	ep := &Endpoint{
		mux:    m,
		peer:   from,
		remote: mustAddress(remote),
		inbox:  make(chan []byte, m.inboxSize),
		closed: make(chan struct{}),
	}
	select {
	case m.accept <- ep:
	default:
		m.refused.Add(1)
		return nil
	}
	m.peers[from] = ep
	m.accepted.Add(1)
	logger.Debug("新的 UDP 对端", "local", m.local, "remote", ep.remote)
	return ep
}

func (m *Mux) remove(ep *Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.peers[ep.peer] != ep {
		return
	}
	delete(m.peers, ep.peer)
	if m.linger > 0 && !m.closed {
		now := time.Now()
		for a, until := range m.lingering {
			if now.After(until) {
				delete(m.lingering, a)
			}
		}
		m.lingering[ep.peer] = now.Add(m.linger)
	}
}

// ============================================================================
//                              Endpoint
// ============================================================================

// Endpoint Mux 上一个对端的尽力而为传输
type Endpoint struct {
	mux    *Mux
	peer   netip.AddrPort
	remote types.Address

	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

var _ transport.LossyTransport = (*Endpoint)(nil)

// LocalAddress 监听地址
func (e *Endpoint) LocalAddress() types.Address { return e.mux.local }

// RemoteAddress 对端地址
func (e *Endpoint) RemoteAddress() types.Address { return e.remote }

// MaxUnitSize 单元上限
func (e *Endpoint) MaxUnitSize() int { return e.mux.mtu }

// Send 向对端发送一个数据报
//
// 套接字由所有端点共享，不设置写截止时间；UDP 写入不会长时间阻塞。
func (e *Endpoint) Send(ctx context.Context, p []byte) (int, error) {
	if err := e.checkOpen(ctx); err != nil {
		return 0, &transport.TransportError{Op: "send", Err: err}
	}
	if len(p) > e.mux.mtu {
		return 0, &transport.TransportError{Op: "send", Err: transport.ErrUnitTooLarge}
	}
	n, err := e.mux.conn.WriteToUDPAddrPort(p, e.peer)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return len(p), nil
		}
		if errors.Is(err, net.ErrClosed) {
			err = transport.ErrClosed
		}
		return n, &transport.TransportError{Op: "send", Err: err}
	}
	return n, nil
}

// Recv 接收一个数据报
func (e *Endpoint) Recv(ctx context.Context, p []byte) (int, error) {
	if err := e.checkOpen(ctx); err != nil {
		return 0, &transport.TransportError{Op: "recv", Err: err}
	}
	select {
	case u := <-e.inbox:
		if len(u) > len(p) {
			return 0, &transport.TransportError{Op: "recv", Err: io.ErrShortBuffer}
		}
		return copy(p, u), nil
	case <-e.closed:
		return 0, &transport.TransportError{Op: "recv", Err: transport.ErrClosed}
	case <-ctx.Done():
		return 0, &transport.TransportError{Op: "recv", Err: ctx.Err()}
	}
}

func (e *Endpoint) checkOpen(ctx context.Context) error {
	select {
	case <-e.closed:
		return transport.ErrClosed
	default:
	}
	return ctx.Err()
}

func (e *Endpoint) deliver(u []byte) bool {
	select {
	case <-e.closed:
		return false
	default:
	}
	select {
	case e.inbox <- u:
		return true
	default:
		return false
	}
}

// Close 注销端点，之后同一来源的数据报在 Linger 期间被丢弃
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.mux.remove(e)
	})
	return nil
}
