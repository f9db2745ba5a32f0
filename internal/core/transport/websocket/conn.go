package websocket

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// closeWait 发送 Close 控制帧的等待上限
const closeWait = time.Second

// Conn WebSocket 数据通道
//
// gorilla 允许一个并发读者与一个并发写者，读写各自持锁。
type Conn struct {
	transport.DataPlaneMarker

	ws     *websocket.Conn
	local  types.Address
	remote types.Address

	rmu        sync.Mutex
	reader     io.Reader
	eof        bool
	readClosed atomic.Bool

	wmu         sync.Mutex
	writeClosed bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ transport.DataChannel = (*Conn)(nil)

func newConn(ws *websocket.Conn) (*Conn, error) {
	local, err := types.AddressFromNetAddr(ws.LocalAddr(), "ws")
	if err != nil {
		return nil, err
	}
	remote, err := types.AddressFromNetAddr(ws.RemoteAddr(), "ws")
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws, local: local, remote: remote}, nil
}

// Read 读取字节流，跨消息拼接
func (c *Conn) Read(p []byte) (int, error) {
	if c.readClosed.Load() {
		return 0, transport.ErrClosed
	}
	c.rmu.Lock()
	defer c.rmu.Unlock()
	return c.readLocked(p)
}

func (c *Conn) readLocked(p []byte) (int, error) {
	for {
		if c.eof {
			return 0, io.EOF
		}
		if c.reader == nil {
			typ, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.eof = true
					return 0, io.EOF
				}
				return 0, c.mapErr(err)
			}
			if typ == websocket.TextMessage {
				c.eof = true
				return 0, io.EOF
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return n, c.mapErr(err)
		}
		return n, nil
	}
}

// Write 每次写入作为一条 Binary 消息
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeClosed {
		return 0, transport.ErrClosed
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, c.mapErr(err)
	}
	return len(p), nil
}

// CloseWrite 发送半关闭标记
func (c *Conn) CloseWrite() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeClosed {
		return nil
	}
	c.writeClosed = true
	return c.mapErr(c.ws.WriteMessage(websocket.TextMessage, nil))
}

// CloseRead 关闭读端，后台丢弃后续消息
func (c *Conn) CloseRead() error {
	if !c.readClosed.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		c.rmu.Lock()
		defer c.rmu.Unlock()
		scratch := make([]byte, 4096)
		for {
			if _, err := c.readLocked(scratch); err != nil {
				return
			}
		}
	}()
	return nil
}

// Close 发送 Close 控制帧并关闭底层连接
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.readClosed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait)); err != nil {
			logger.Debug("发送 Close 控制帧失败", "remote", c.remote, "error", err)
		}
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// LocalAddress 本端地址
func (c *Conn) LocalAddress() types.Address { return c.local }

// RemoteAddress 对端地址
func (c *Conn) RemoteAddress() types.Address { return c.remote }

func (c *Conn) mapErr(err error) error {
	if err != nil && c.closed.Load() {
		return transport.ErrClosed
	}
	return err
}
