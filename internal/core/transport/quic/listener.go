package quic

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// acceptBacklog 已建立但未被 Accept 的通道上限
const acceptBacklog = 16

// Listener QUIC 监听器
type Listener struct {
	tr   *quic.Transport
	udp  *net.UDPConn
	ql   *quic.Listener
	addr types.Address

	streamTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	incoming chan *Conn
	loopDone chan struct{}

	mu       sync.Mutex
	closed   bool
	active   int
	released bool
}

var _ network.ChannelListener = (*Listener)(nil)

func newListener(tr *quic.Transport, udp *net.UDPConn, ql *quic.Listener, streamTimeout time.Duration) (*Listener, error) {
	addr, err := types.AddressFromNetAddr(udp.LocalAddr(), "quic-v1")
	if err != nil {
		return nil, err
	}
	if streamTimeout <= 0 {
		streamTimeout = DefaultConfig().HandshakeIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		tr:            tr,
		udp:           udp,
		ql:            ql,
		addr:          addr,
		streamTimeout: streamTimeout,
		ctx:           ctx,
		cancel:        cancel,
		incoming:      make(chan *Conn, acceptBacklog),
		loopDone:      make(chan struct{}),
	}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	defer close(l.loopDone)
	for {
		qc, err := l.ql.Accept(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				logger.Warn("QUIC accept 失败", "addr", l.addr, "error", err)
			}
			return
		}
		go l.handle(qc)
	}
}

// handle 等待拨号方打开流并校验前导字节
func (l *Listener) handle(qc quic.Connection) {
	ctx, cancel := context.WithTimeout(l.ctx, l.streamTimeout)
	defer cancel()

	st, err := qc.AcceptStream(ctx)
	if err != nil {
		qc.CloseWithError(0, "")
		return
	}
	var b [1]byte
	stop := context.AfterFunc(ctx, func() { st.CancelRead(0) })
	_, err = io.ReadFull(st, b[:])
	stop()
	if err != nil || b[0] != preamble {
		logger.Debug("丢弃前导字节无效的连接", "remote", qc.RemoteAddr(), "error", err)
		qc.CloseWithError(1, ErrBadPreamble.Error())
		return
	}

	if !l.acquire() {
		qc.CloseWithError(0, "")
		return
	}
	c, err := newConn(qc, st, l.release)
	if err != nil {
		qc.CloseWithError(0, "")
		l.release()
		return
	}

	select {
	case l.incoming <- c:
		// 与 Close 竞争时由本方清理
		if l.ctx.Err() != nil {
			l.drain()
		}
	case <-l.ctx.Done():
		c.Close()
	}
}

func (l *Listener) drain() {
	for {
		select {
		case c := <-l.incoming:
			c.Close()
		default:
			return
		}
	}
}

// acquire 登记一个存活连接，监听器已关闭时失败
func (l *Listener) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.active++
	return true
}

// release 注销一个存活连接，最后一个连接关闭后释放 socket
func (l *Listener) release() {
	l.mu.Lock()
	l.active--
	done := l.closed && l.active == 0 && !l.released
	if done {
		l.released = true
	}
	l.mu.Unlock()
	if done {
		l.releaseSocket()
	}
}

func (l *Listener) releaseSocket() {
	l.tr.Close()
	l.udp.Close()
}

// Accept 取出下一个通道
func (l *Listener) Accept() (transport.DataChannel, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.ctx.Done():
		return nil, transport.ErrClosed
	}
}

// Addr 实际监听地址
func (l *Listener) Addr() types.Address { return l.addr }

// Close 停止接受；socket 在最后一个已接受连接关闭后释放
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	err := l.ql.Close()
	<-l.loopDone

	// 关闭未被接受的通道
	l.drain()

	l.mu.Lock()
	done := l.active == 0 && !l.released
	if done {
		l.released = true
	}
	l.mu.Unlock()
	if done {
		l.releaseSocket()
	}
	return err
}
