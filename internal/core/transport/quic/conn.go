package quic

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// Conn 单流 QUIC 数据通道
type Conn struct {
	transport.DataPlaneMarker

	qc     quic.Connection
	st     quic.Stream
	local  types.Address
	remote types.Address

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

var _ transport.DataChannel = (*Conn)(nil)

func newConn(qc quic.Connection, st quic.Stream, onClose func()) (*Conn, error) {
	local, err := types.AddressFromNetAddr(qc.LocalAddr(), "quic-v1")
	if err != nil {
		return nil, err
	}
	remote, err := types.AddressFromNetAddr(qc.RemoteAddr(), "quic-v1")
	if err != nil {
		return nil, err
	}
	return &Conn{qc: qc, st: st, local: local, remote: remote, onClose: onClose}, nil
}

// Read 读取数据；对端以错误码 0 关闭连接视为 io.EOF
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.st.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	if c.closed.Load() {
		return n, transport.ErrClosed
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) && appErr.Remote && appErr.ErrorCode == 0 {
		return n, io.EOF
	}
	return n, err
}

// Write 写入数据
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.st.Write(p)
	if err != nil && c.closed.Load() {
		return n, transport.ErrClosed
	}
	return n, err
}

// CloseRead 停止接收
func (c *Conn) CloseRead() error {
	c.st.CancelRead(0)
	return nil
}

// CloseWrite 发送流 FIN，对端读到 io.EOF
func (c *Conn) CloseWrite() error {
	return c.st.Close()
}

// Close 关闭整个 QUIC 连接
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.st.CancelRead(0)
		c.closeErr = c.qc.CloseWithError(0, "")
		if c.onClose != nil {
			c.onClose()
		}
	})
	return c.closeErr
}

// LocalAddress 本端地址
func (c *Conn) LocalAddress() types.Address { return c.local }

// RemoteAddress 对端地址
func (c *Conn) RemoteAddress() types.Address { return c.remote }
