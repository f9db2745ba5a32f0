package memnet

import (
	"context"
	"sync"

	"github.com/dep2p/go-p2pnet/internal/core/transport/reliable"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// Listener 模拟网络监听器
type Listener struct {
	p    *Provider
	addr types.Address

	backlog   chan *reliable.Stream
	done      chan struct{}
	closeOnce sync.Once
}

var _ network.ChannelListener = (*Listener)(nil)

func newListener(p *Provider, addr types.Address, backlog int) *Listener {
	return &Listener{
		p:       p,
		addr:    addr,
		backlog: make(chan *reliable.Stream, backlog),
		done:    make(chan struct{}),
	}
}

// enqueue 等待队列空位，ctx 结束或监听器关闭时放弃
func (l *Listener) enqueue(ctx context.Context, s *reliable.Stream) error {
	select {
	case <-l.done:
		return ErrConnectionRefused
	default:
	}
	select {
	case l.backlog <- s:
		// 与 Close 竞争时由本方清理
		select {
		case <-l.done:
			l.drain()
			return ErrConnectionRefused
		default:
		}
		return nil
	case <-l.done:
		return ErrConnectionRefused
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Accept 取出下一条入站链路
func (l *Listener) Accept() (transport.DataChannel, error) {
	select {
	case s := <-l.backlog:
		return s, nil
	case <-l.done:
		return nil, transport.ErrClosed
	}
}

// Addr 监听地址
func (l *Listener) Addr() types.Address { return l.addr }

// Close 注销地址并关闭未被接受的链路
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.p.removeListener(l.addr, l)
		l.drain()
	})
	return nil
}

func (l *Listener) drain() {
	for {
		select {
		case s := <-l.backlog:
			s.Close()
		default:
			return
		}
	}
}
