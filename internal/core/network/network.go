package network

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	tec "github.com/jbenet/go-temp-err-catcher"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-p2pnet/internal/core/addrcodec"
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("core/network")

// dialKey 出站去重键
type dialKey struct {
	id   types.NodeID
	addr types.Address
}

// boundListener 已绑定的监听器
type boundListener struct {
	ln   netif.ChannelListener
	addr types.Address
}

// Network 网络实现
type Network struct {
	cfg      Config
	observer Observer

	localID    types.NodeID
	codec      netif.AddressCodec
	providers  []netif.ChannelProvider
	handshaker security.Handshaker

	// 作用域
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	results chan netif.Result
	done    chan struct{}

	mu        sync.Mutex
	closed    bool
	listeners []*boundListener
	dialing   map[dialKey]struct{}

	closeOnce sync.Once
	closeErr  error
}

var _ netif.Network = (*Network)(nil)

// Init 创建网络并绑定 cfg.ListenAddrs
//
// 任一地址绑定失败时，已绑定的监听器全部关闭后返回 *InitializationError。
// ctx 只约束初始化过程，网络的生命周期由 Close 结束。
func Init(ctx context.Context, cfg netif.NetConfig, deps Deps, opts ...Option) (*Network, *Incoming, error) {
	o := options{cfg: DefaultConfig(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, nil, &netif.InitializationError{Err: err}
	}

	if cfg.PrivateKey == nil || cfg.PublicKey == nil {
		return nil, nil, &netif.InitializationError{Err: netif.ErrMissingKey}
	}
	if !crypto.CheckKeyPair(cfg.PrivateKey, cfg.PublicKey) {
		return nil, nil, &netif.InitializationError{Err: netif.ErrKeyMismatch}
	}
	localID, err := crypto.NodeIDFromPublicKey(cfg.PublicKey)
	if err != nil {
		return nil, nil, &netif.InitializationError{Err: err}
	}
	if deps.Handshaker == nil {
		return nil, nil, &netif.InitializationError{Err: ErrNoHandshaker}
	}
	hs, err := deps.Handshaker(cfg.PrivateKey)
	if err != nil {
		return nil, nil, &netif.InitializationError{Err: err}
	}
	codec := deps.Codec
	if codec == nil {
		codec = addrcodec.Default()
	}

	scope, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n := &Network{
		cfg:        o.cfg,
		observer:   o.observer,
		localID:    localID,
		codec:      codec,
		providers:  slices.Clone(deps.Providers),
		handshaker: hs,
		ctx:        scope,
		cancel:     cancel,
		sem:        semaphore.NewWeighted(int64(o.cfg.MaxConcurrentHandshakes)),
		limiter:    rate.NewLimiter(o.cfg.InboundRate, o.cfg.InboundBurst),
		results:    make(chan netif.Result, o.cfg.IncomingBuffer),
		done:       make(chan struct{}),
		dialing:    make(map[dialKey]struct{}),
	}

	for _, addr := range slices.Clone(cfg.ListenAddrs) {
		err := ctx.Err()
		if err == nil {
			err = n.listen(addr)
		}
		if err != nil {
			n.Close()
			logger.Warn("初始化失败", "addr", addr, "error", err)
			return nil, nil, &netif.InitializationError{Addr: addr, Err: err}
		}
	}

	logger.Info("网络已启动", "local", log.TruncateID(localID.String(), 8), "listen", len(n.listeners))
	return n, &Incoming{n: n}, nil
}

// LocalID 本地节点 ID
func (n *Network) LocalID() types.NodeID { return n.localID }

// ============================================================================
//                              监听
// ============================================================================

// Listen 逐个绑定地址，返回合并后的错误
func (n *Network) Listen(addrs ...types.Address) error {
	var err error
	for _, addr := range addrs {
		if e := n.listen(addr); e != nil {
			logger.Warn("监听失败", "addr", addr, "error", e)
			err = multierr.Append(err, fmt.Errorf("listen %s: %w", addr, e))
		}
	}
	return err
}

func (n *Network) listen(addr types.Address) error {
	if err := n.codec.Validate(addr); err != nil {
		return err
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return netif.ErrNetworkClosed
	}
	for _, bl := range n.listeners {
		if bl.addr == addr {
			n.mu.Unlock()
			return netif.ErrAlreadyListening
		}
	}
	n.mu.Unlock()

	p := n.provider(addr)
	if p == nil {
		return netif.ErrNoProvider
	}
	ln, err := p.Listen(addr)
	if err != nil {
		return err
	}

	bl := &boundListener{ln: ln, addr: ln.Addr()}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		ln.Close()
		return netif.ErrNetworkClosed
	}
	n.listeners = append(n.listeners, bl)
	n.wg.Add(1)
	n.mu.Unlock()

	n.observer.ListenerOpened(bl.addr)
	go n.acceptLoop(bl)
	logger.Info("监听地址", "addr", bl.addr, "provider", p.Name())
	return nil
}

// ListenAddrs 当前监听地址（端口为 0 时为实际端口）
func (n *Network) ListenAddrs() []types.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.Address, 0, len(n.listeners))
	for _, bl := range n.listeners {
		out = append(out, bl.addr)
	}
	return out
}

func (n *Network) provider(addr types.Address) netif.ChannelProvider {
	for _, p := range n.providers {
		if p.CanDial(addr) {
			return p
		}
	}
	return nil
}

func (n *Network) removeListener(bl *boundListener) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, x := range n.listeners {
		if x == bl {
			n.listeners = slices.Delete(n.listeners, i, i+1)
			return true
		}
	}
	return false
}

// acceptLoop 接受入站通道并为每个通道启动握手
func (n *Network) acceptLoop(bl *boundListener) {
	defer n.wg.Done()

	var catcher tec.TempErrCatcher
	for {
		ch, err := bl.ln.Accept()
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			if catcher.IsTemporary(err) {
				continue
			}
			// 监听器意外失效
			if n.removeListener(bl) {
				bl.ln.Close()
				n.observer.ListenerClosed(bl.addr)
			}
			if !errors.Is(err, transport.ErrClosed) {
				logger.Warn("accept 失败，停止监听", "addr", bl.addr, "error", err)
				n.emit(failure(types.EmptyNodeID, bl.addr, types.DirInbound, opAccept, err))
			}
			return
		}
		catcher.Reset()

		if err := n.limiter.Wait(n.ctx); err != nil {
			ch.Close()
			return
		}
		n.wg.Add(1)
		go n.inbound(ch)
	}
}

// ============================================================================
//                              出站
// ============================================================================

// Connect 请求出站连接，结果出现在 incoming 流上
//
// 同一 (remoteID, addr) 的拨号在途时，后续请求被丢弃。
func (n *Network) Connect(remoteID types.NodeID, addr types.Address, remotePubKey crypto.PublicKey, state types.PersistentState) {
	key := dialKey{id: remoteID, addr: addr}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		logger.Debug("网络已关闭，忽略连接请求", "addr", addr)
		return
	}
	if _, ok := n.dialing[key]; ok {
		n.mu.Unlock()
		logger.Debug("拨号进行中，忽略重复请求", "remote", log.TruncateID(remoteID.String(), 8), "addr", addr)
		return
	}
	n.dialing[key] = struct{}{}
	n.wg.Add(1)
	n.mu.Unlock()

	go n.outbound(key, remotePubKey, state.Clone())
}

func (n *Network) outbound(key dialKey, remotePub crypto.PublicKey, state types.PersistentState) {
	defer n.wg.Done()

	res := n.dial(key, remotePub, state)

	// 先解除去重再交付，消费者收到结果后立即重连不会被丢弃
	n.mu.Lock()
	delete(n.dialing, key)
	n.mu.Unlock()

	n.emit(res)
}

func (n *Network) dial(key dialKey, remotePub crypto.PublicKey, state types.PersistentState) netif.Result {
	dir := types.DirOutbound
	if err := n.codec.Validate(key.addr); err != nil {
		return failure(key.id, key.addr, dir, opValidate, err)
	}
	p := n.provider(key.addr)
	if p == nil {
		return failure(key.id, key.addr, dir, opDial, netif.ErrNoProvider)
	}

	if err := n.sem.Acquire(n.ctx, 1); err != nil {
		return failure(key.id, key.addr, dir, opDial, err)
	}
	defer n.sem.Release(1)

	ctx, cancel := context.WithTimeout(n.ctx, n.cfg.HandshakeTimeout)
	defer cancel()

	trace := uuid.NewString()
	logger.Debug("开始拨号", "trace", trace, "remote", log.TruncateID(key.id.String(), 8), "addr", key.addr)

	ch, err := p.Dial(ctx, key.addr)
	if err != nil {
		return failure(key.id, key.addr, dir, opDial, err)
	}

	n.observer.HandshakeStarted(dir)
	sess, err := n.handshaker.SecureOutbound(ctx, ch, remotePub, state)
	n.observer.HandshakeCompleted(dir, err)
	if err != nil {
		ch.Close()
		logger.Debug("出站握手失败", "trace", trace, "error", err)
		return failure(key.id, key.addr, dir, opHandshake, err)
	}

	logger.Debug("出站连接建立", "trace", trace, "addr", key.addr)
	return netif.Result{
		RemoteID:  key.id,
		Address:   key.addr,
		Direction: dir,
		Conn:      newConnection(key.addr, sess),
	}
}

// ============================================================================
//                              入站
// ============================================================================

func (n *Network) inbound(ch transport.DataChannel) {
	defer n.wg.Done()
	n.emit(n.accept(ch))
}

func (n *Network) accept(ch transport.DataChannel) netif.Result {
	dir := types.DirInbound
	remote := ch.RemoteAddress()

	if err := n.sem.Acquire(n.ctx, 1); err != nil {
		ch.Close()
		return failure(types.EmptyNodeID, remote, dir, opHandshake, err)
	}
	defer n.sem.Release(1)

	ctx, cancel := context.WithTimeout(n.ctx, n.cfg.HandshakeTimeout)
	defer cancel()

	n.observer.HandshakeStarted(dir)
	sess, err := n.handshaker.SecureInbound(ctx, ch)
	n.observer.HandshakeCompleted(dir, err)
	if err != nil {
		ch.Close()
		logger.Debug("入站握手失败", "remote", remote, "error", err)
		return failure(types.EmptyNodeID, remote, dir, opHandshake, err)
	}

	id, err := crypto.NodeIDFromPublicKey(sess.RemotePublicKey())
	if err != nil {
		sess.Close()
		return failure(types.EmptyNodeID, remote, dir, opHandshake, err)
	}

	logger.Debug("入站连接建立", "remote", log.TruncateID(id.String(), 8), "addr", remote)
	return netif.Result{
		RemoteID:  id,
		Address:   remote,
		Direction: dir,
		Conn:      newConnection(remote, sess),
	}
}

// ============================================================================
//                              结果与关闭
// ============================================================================

// emit 交付结果；作用域结束后丢弃并关闭连接
func (n *Network) emit(r netif.Result) {
	select {
	case n.results <- r:
	case <-n.ctx.Done():
		if r.Conn != nil {
			r.Conn.Close()
		}
	}
}

func failure(id types.NodeID, addr types.Address, dir types.Direction, op string, err error) netif.Result {
	return netif.Result{
		RemoteID:  id,
		Address:   addr,
		Direction: dir,
		Err: &netif.ConnectionError{
			RemoteID:  id,
			Addr:      addr,
			Direction: dir,
			Op:        op,
			Err:       err,
		},
	}
}

// Close 关闭网络并结束 incoming 流
func (n *Network) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		listeners := n.listeners
		n.listeners = nil
		n.mu.Unlock()

		n.cancel()

		var err error
		for _, bl := range listeners {
			err = multierr.Append(err, bl.ln.Close())
			n.observer.ListenerClosed(bl.addr)
		}

		n.wg.Wait()

		// 关闭已完成但未被取走的连接
		for drained := false; !drained; {
			select {
			case r := <-n.results:
				if r.Conn != nil {
					r.Conn.Close()
				}
			default:
				drained = true
			}
		}

		close(n.done)
		n.closeErr = err
		logger.Info("网络已关闭")
	})
	return n.closeErr
}

// ============================================================================
//                              incoming 流
// ============================================================================

// Incoming 连接结果流
type Incoming struct {
	n *Network
}

var _ netif.Incoming = (*Incoming)(nil)

// Next 阻塞直到下一个结果、流结束或 ctx 结束
func (in *Incoming) Next(ctx context.Context) (netif.Result, error) {
	select {
	case r := <-in.n.results:
		return r, nil
	case <-in.n.done:
		return netif.Result{}, netif.ErrStreamClosed
	case <-ctx.Done():
		return netif.Result{}, ctx.Err()
	}
}

// Close 关闭流，等价于关闭网络
func (in *Incoming) Close() error {
	return in.n.Close()
}
