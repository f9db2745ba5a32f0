// Package udp 实现基于 UDP 套接字的尽力而为传输
//
// 拨号侧的 Transport 是一个已连接的 UDP 套接字：只与一个对端交换数据报。
// 监听侧的 Mux 在一个套接字上按来源地址分流，为每个对端生成一个 Endpoint。
// ICMP 端口不可达（ECONNREFUSED）被视为丢包而不是错误。
package udp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("transport/udp")

// DefaultMTU 保守的单元上限，避免 IP 分片
const DefaultMTU = 1200

// maxDatagram UDP 载荷上限
const maxDatagram = 65507

// ErrNotUDPAddress 地址不是 /ip*/.../udp/... 形式
var ErrNotUDPAddress = errors.New("udp: not a udp address")

// InitData Transport 初始化数据
type InitData struct {
	// Local 本端绑定地址，端口 0 表示随机
	Local types.Address
	// Remote 对端地址
	Remote types.Address
	// MTU 单元上限，0 使用 DefaultMTU
	MTU int
}

// Transport 已连接的 UDP 端点
type Transport struct {
	conn *net.UDPConn
	mtu  int

	local  types.Address
	remote types.Address

	rmu  sync.Mutex
	rbuf []byte

	closed atomic.Bool
}

var (
	_ transport.LossyTransport                = (*Transport)(nil)
	_ transport.Factory[InitData, *Transport] = Create
)

// Create 绑定本端地址并连接到对端
func Create(ctx context.Context, data InitData) (*Transport, error) {
	laddr, err := udpAddr(data.Local)
	if err != nil {
		return nil, &transport.InitError{Transport: "udp", Err: err}
	}
	network, raddr, err := multiaddr.DialArgs(data.Remote.Bytes())
	if err != nil || network[:3] != "udp" {
		return nil, &transport.InitError{Transport: "udp", Err: fmt.Errorf("%w: %s", ErrNotUDPAddress, data.Remote)}
	}

	var d net.Dialer
	if laddr != nil {
		d.LocalAddr = laddr
	}
	c, err := d.DialContext(ctx, network, raddr)
	if err != nil {
		return nil, &transport.InitError{Transport: "udp", Err: err}
	}

	mtu := data.MTU
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	if mtu > maxDatagram {
		mtu = maxDatagram
	}

	conn := c.(*net.UDPConn)
	local, err := multiaddr.FromNetAddr(conn.LocalAddr())
	if err != nil {
		conn.Close()
		return nil, &transport.InitError{Transport: "udp", Err: err}
	}
	t := &Transport{
		conn:   conn,
		mtu:    mtu,
		local:  mustAddress(local),
		remote: data.Remote,
		rbuf:   make([]byte, maxDatagram),
	}
	logger.Debug("UDP 端点已创建", "local", t.local, "remote", t.remote)
	return t, nil
}

func udpAddr(a types.Address) (*net.UDPAddr, error) {
	if a.IsZero() {
		return nil, nil
	}
	network, hostport, err := multiaddr.DialArgs(a.Bytes())
	if err != nil || network[:3] != "udp" {
		return nil, fmt.Errorf("%w: %s", ErrNotUDPAddress, a)
	}
	return net.ResolveUDPAddr(network, hostport)
}

func mustAddress(b []byte) types.Address {
	a, err := types.AddressFromBytes(b)
	if err != nil {
		panic(err)
	}
	return a
}

// LocalAddress 实际绑定的本端地址
func (t *Transport) LocalAddress() types.Address { return t.local }

// RemoteAddress 对端地址
func (t *Transport) RemoteAddress() types.Address { return t.remote }

// MaxUnitSize 单元上限
func (t *Transport) MaxUnitSize() int { return t.mtu }

// Send 发送一个数据报
func (t *Transport) Send(ctx context.Context, p []byte) (int, error) {
	if t.closed.Load() {
		return 0, &transport.TransportError{Op: "send", Err: transport.ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return 0, &transport.TransportError{Op: "send", Err: err}
	}
	if len(p) > t.mtu {
		return 0, &transport.TransportError{Op: "send", Err: transport.ErrUnitTooLarge}
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
		defer t.conn.SetWriteDeadline(time.Time{})
	}

	n, err := t.conn.Write(p)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			// 对端未监听，等同丢包
			return len(p), nil
		}
		return n, &transport.TransportError{Op: "send", Err: t.mapErr(ctx, err)}
	}
	return n, nil
}

// Recv 接收一个数据报
//
// ctx 取消时通过读截止时间唤醒阻塞的读取。
func (t *Transport) Recv(ctx context.Context, p []byte) (int, error) {
	t.rmu.Lock()
	defer t.rmu.Unlock()

	if t.closed.Load() {
		return 0, &transport.TransportError{Op: "recv", Err: transport.ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return 0, &transport.TransportError{Op: "recv", Err: err}
	}

	// 回调已开始时须等它写完截止时间再复位，否则复位会被覆盖
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = t.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			<-fired
			_ = t.conn.SetReadDeadline(time.Time{})
		}
	}()

	for {
		n, err := t.conn.Read(t.rbuf)
		if err != nil {
			if errors.Is(err, syscall.ECONNREFUSED) {
				continue
			}
			return 0, &transport.TransportError{Op: "recv", Err: t.mapErr(ctx, err)}
		}
		if n > len(p) {
			return 0, &transport.TransportError{Op: "recv", Err: io.ErrShortBuffer}
		}
		return copy(p, t.rbuf[:n]), nil
	}
}

func (t *Transport) mapErr(ctx context.Context, err error) error {
	if t.closed.Load() || errors.Is(err, net.ErrClosed) {
		return transport.ErrClosed
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Close 关闭套接字
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.conn.Close()
}
