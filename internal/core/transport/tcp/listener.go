package tcp

import (
	"errors"
	"net"

	tec "github.com/jbenet/go-temp-err-catcher"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// Listener TCP 监听器
type Listener struct {
	ln   net.Listener
	addr types.Address
}

var _ network.ChannelListener = (*Listener)(nil)

func newListener(ln net.Listener) (*Listener, error) {
	// 端口为 0 时取内核分配的实际地址
	addr, err := types.AddressFromNetAddr(ln.Addr())
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, addr: addr}, nil
}

// Accept 接受连接，临时错误退避后重试
func (l *Listener) Accept() (transport.DataChannel, error) {
	var catcher tec.TempErrCatcher
	for {
		c, err := l.ln.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				logger.Debug("临时 accept 错误", "error", err)
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, transport.ErrClosed
			}
			return nil, err
		}
		catcher.Reset()

		conn, err := newConn(c)
		if err != nil {
			c.Close()
			logger.Warn("丢弃无法识别地址的连接", "error", err)
			continue
		}
		return conn, nil
	}
}

// Addr 实际监听地址
func (l *Listener) Addr() types.Address { return l.addr }

// Close 关闭监听器
func (l *Listener) Close() error { return l.ln.Close() }
