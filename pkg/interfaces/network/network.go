// Package network 定义网络契约
//
// 网络把（身份、地址、可选的已知公钥、可选的恢复状态）转换为经过认证的
// 双向字节流 Connection，并通过单消费者的 incoming 流报告所有连接结果：
//
//	Init(ctx, NetConfig, ...)   绑定监听地址，返回句柄与 incoming 流
//	Connect(id, addr, pub, st)  非阻塞出站请求，结果出现在 incoming 流上
//	Listen(addrs...)            追加监听地址，单个失败不影响其他地址
//
// 实现位于 internal/core/network。
package network

import (
	"context"
	"io"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// ============================================================================
//                              配置与数据
// ============================================================================

// NetConfig 网络启动配置
//
// Init 消费一次并复制，之后不可变。
type NetConfig struct {
	PrivateKey  crypto.PrivateKey
	PublicKey   crypto.PublicKey
	ListenAddrs []types.Address
}

// Connection 握手成功后产生的连接
//
// 所有权完整移交给 incoming 流的消费者。Read 与 Write 两个半部可以由
// 不同的 goroutine 并发驱动；两者都关闭后底层通道被释放。
type Connection struct {
	// NetAddress 协商得到的对端地址
	NetAddress types.Address

	// RemotePubKey 经过认证的对端公钥
	RemotePubKey crypto.PublicKey

	// PersistentState 更新后的恢复状态，调用方应保存并在下次 Connect 时传回
	PersistentState types.PersistentState

	// Read 读半部，Close 只关闭读方向
	Read io.ReadCloser

	// Write 写半部，Close 后对端读到 io.EOF
	Write io.WriteCloser
}

// Close 同时关闭两个半部
func (c *Connection) Close() error {
	rerr := c.Read.Close()
	werr := c.Write.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// Result incoming 流上的一项
//
// 成功时 Conn 非空、Err 为空；失败时 Err 为 *ConnectionError。
type Result struct {
	RemoteID  types.NodeID
	Address   types.Address
	Direction types.Direction
	Conn      *Connection
	Err       error
}

// ============================================================================
//                              依赖注入接口
// ============================================================================

// AddressCodec 地址解析与校验
type AddressCodec interface {
	// Parse 解析可读形式
	Parse(s string) (types.Address, error)

	// Decode 解析紧凑二进制形式
	Decode(b []byte) (types.Address, error)

	// Validate 检查地址是否为本网络可用的地址
	Validate(addr types.Address) error
}

// ChannelListener 通道监听器
type ChannelListener interface {
	// Accept 阻塞直到有新通道，Close 后返回错误
	Accept() (transport.DataChannel, error)

	// Addr 实际监听地址（端口为 0 时已解析）
	Addr() types.Address

	// Close 关闭监听器并释放地址
	Close() error
}

// ChannelProvider 原始字节通道提供者
type ChannelProvider interface {
	// Name 提供者名称
	Name() string

	// CanDial 是否能处理该地址（拨号与监听共用）
	CanDial(addr types.Address) bool

	// Dial 建立出站通道
	Dial(ctx context.Context, addr types.Address) (transport.DataChannel, error)

	// Listen 绑定地址
	Listen(addr types.Address) (ChannelListener, error)
}

// ============================================================================
//                              网络句柄
// ============================================================================

// Network 网络句柄
//
// 可被多个 goroutine 并发使用。
type Network interface {
	// Connect 请求出站连接，立即返回
	Connect(remoteID types.NodeID, addr types.Address, remotePubKey crypto.PublicKey, state types.PersistentState)

	// Listen 追加监听地址
	Listen(addrs ...types.Address) error

	// ListenAddrs 当前监听地址
	ListenAddrs() []types.Address

	// Close 关闭网络，等价于关闭 incoming 流
	Close() error
}

// Incoming 单消费者的连接结果流
type Incoming interface {
	// Next 阻塞直到下一项；流结束时返回 ErrStreamClosed
	Next(ctx context.Context) (Result, error)

	// Close 关闭流，等价于关闭网络
	Close() error
}
