package tcp

import (
	"net"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// Conn TCP 数据通道
type Conn struct {
	transport.DataPlaneMarker

	conn   *net.TCPConn
	local  types.Address
	remote types.Address
}

var _ transport.DataChannel = (*Conn)(nil)

func newConn(c net.Conn) (*Conn, error) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, ErrNotTCPConn
	}
	local, err := types.AddressFromNetAddr(tc.LocalAddr())
	if err != nil {
		return nil, err
	}
	remote, err := types.AddressFromNetAddr(tc.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return &Conn{conn: tc, local: local, remote: remote}, nil
}

// Read 读取数据
func (c *Conn) Read(p []byte) (int, error) { return c.conn.Read(p) }

// Write 写入数据
func (c *Conn) Write(p []byte) (int, error) { return c.conn.Write(p) }

// CloseRead 关闭读方向
func (c *Conn) CloseRead() error { return c.conn.CloseRead() }

// CloseWrite 发送 FIN，对端读到 io.EOF
func (c *Conn) CloseWrite() error { return c.conn.CloseWrite() }

// Close 关闭连接
func (c *Conn) Close() error { return c.conn.Close() }

// LocalAddress 本端地址
func (c *Conn) LocalAddress() types.Address { return c.local }

// RemoteAddress 对端地址
func (c *Conn) RemoteAddress() types.Address { return c.remote }
