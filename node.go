package p2pnet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pnet/internal/core/metrics"
	"github.com/dep2p/go-p2pnet/internal/core/network"
	"github.com/dep2p/go-p2pnet/internal/core/transport"
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("p2pnet")

// stopTimeout 关闭 fx 应用的时间上限
const stopTimeout = 10 * time.Second

// Node 组装好的网络节点
//
// 实现 network.Network；关闭节点会结束 incoming 流并释放全部传输资源。
type Node struct {
	app *fx.App

	net        *network.Network
	in         *network.Incoming
	transports *transport.Manager
	metrics    *metrics.Metrics

	closeOnce sync.Once
	closeErr  error
}

var _ netif.Network = (*Node)(nil)

// Init 组装并启动节点
//
// 任一监听地址绑定失败时返回 *netif.InitializationError，且不保留任何已绑定的地址。
func Init(ctx context.Context, cfg netif.NetConfig, opts ...Option) (*Node, *Incoming, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, nil, &netif.InitializationError{Err: err}
		}
	}

	node := &Node{}
	app, err := buildFxApp(ctx, cfg, &o, node)
	if err != nil {
		return nil, nil, err
	}
	if err := app.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		app.Stop(stopCtx)
		return nil, nil, &netif.InitializationError{Err: err}
	}
	node.app = app

	logger.Info("节点已启动", "id", log.TruncateID(node.LocalID().String(), 8), "listen", node.ListenAddrs())
	return node, &Incoming{in: node.in, node: node}, nil
}

// LocalID 本地节点 ID
func (n *Node) LocalID() types.NodeID {
	return n.net.LocalID()
}

// Connect 请求出站连接，结果出现在 incoming 流上
func (n *Node) Connect(remoteID types.NodeID, addr types.Address, remotePubKey crypto.PublicKey, state types.PersistentState) {
	n.net.Connect(remoteID, addr, remotePubKey, state)
}

// Listen 追加监听地址
func (n *Node) Listen(addrs ...types.Address) error {
	return n.net.Listen(addrs...)
}

// ListenAddrs 当前监听地址
func (n *Node) ListenAddrs() []types.Address {
	return n.net.ListenAddrs()
}

// Transports 传输管理器
func (n *Node) Transports() *transport.Manager {
	return n.transports
}

// Metrics 网络事件指标
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Close 关闭网络与全部传输
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		n.closeErr = n.app.Stop(ctx)
		logger.Info("节点已关闭")
	})
	return n.closeErr
}

// Incoming 节点的连接结果流
type Incoming struct {
	in   *network.Incoming
	node *Node
}

var _ netif.Incoming = (*Incoming)(nil)

// Next 阻塞直到下一个结果；节点关闭后返回 netif.ErrStreamClosed
func (i *Incoming) Next(ctx context.Context) (netif.Result, error) {
	return i.in.Next(ctx)
}

// Close 关闭流，等价于关闭节点
func (i *Incoming) Close() error {
	return i.node.Close()
}
