package websocket

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// acceptBacklog 已升级但未被 Accept 的连接上限
const acceptBacklog = 16

// Listener WebSocket 监听器
type Listener struct {
	addr     types.Address
	path     string
	srv      *http.Server
	upgrader websocket.Upgrader

	incoming  chan *Conn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ network.ChannelListener = (*Listener)(nil)

func newListener(ln net.Listener, cfg Config) (*Listener, error) {
	addr, err := types.AddressFromNetAddr(ln.Addr(), "ws")
	if err != nil {
		return nil, err
	}
	l := &Listener{
		addr: addr,
		path: cfg.Path,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			// 节点之间不存在浏览器同源限制
			CheckOrigin: func(*http.Request) bool { return true },
		},
		incoming: make(chan *Conn, acceptBacklog),
		done:     make(chan struct{}),
	}
	l.srv = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: cfg.HandshakeTimeout,
	}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("HTTP 服务退出", "addr", l.addr, "error", err)
		}
	}()
	return l, nil
}

// ServeHTTP 处理升级请求
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != l.path {
		http.NotFound(w, r)
		return
	}
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("升级失败", "remote", r.RemoteAddr, "error", err)
		return
	}
	c, err := newConn(ws)
	if err != nil {
		ws.Close()
		return
	}

	select {
	case l.incoming <- c:
		// 与 Close 竞争时由本方清理
		select {
		case <-l.done:
			l.drain()
		default:
		}
	case <-l.done:
		c.Close()
	}
}

// Accept 取出下一个已升级的连接
func (l *Listener) Accept() (transport.DataChannel, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.done:
		return nil, transport.ErrClosed
	}
}

// Addr 实际监听地址
func (l *Listener) Addr() types.Address { return l.addr }

// Close 停止服务并关闭未被接受的连接
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeErr = l.srv.Close()
		l.drain()
	})
	return l.closeErr
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
