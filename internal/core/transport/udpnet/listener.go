package udpnet

import (
	"sync"

	"github.com/dep2p/go-p2pnet/internal/core/transport/udp"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// Listener UDP 监听器
type Listener struct {
	p   *Provider
	mux *udp.Mux

	closeOnce sync.Once
	closeErr  error
}

var _ network.ChannelListener = (*Listener)(nil)

// Accept 取出下一个新对端的链路
func (l *Listener) Accept() (transport.DataChannel, error) {
	for {
		ep, err := l.mux.Accept()
		if err != nil {
			return nil, err
		}
		s, err := l.p.newStream(ep, l.mux.LocalAddress(), ep.RemoteAddress())
		if err != nil {
			logger.Warn("丢弃无法建立可靠栈的入站链路", "remote", ep.RemoteAddress(), "error", err)
			continue
		}
		return s, nil
	}
}

// Addr 实际监听地址
func (l *Listener) Addr() types.Address { return l.mux.LocalAddress() }

// MuxStats 分流统计
func (l *Listener) MuxStats() udp.MuxStats { return l.mux.Stats() }

// Close 关闭套接字；已接受的链路随之失去底层端点
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.mux.Close()
		l.p.removeListener(l)
	})
	return l.closeErr
}
