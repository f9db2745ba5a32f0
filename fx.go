package p2pnet

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-p2pnet/internal/core/metrics"
	"github.com/dep2p/go-p2pnet/internal/core/network"
	"github.com/dep2p/go-p2pnet/internal/core/security"
	"github.com/dep2p/go-p2pnet/internal/core/transport"
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	securityif "github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var fxLogger = log.Logger("p2pnet/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. transport: 按配置创建通道提供者
//  2. security: Noise 握手器工厂
//  3. metrics: 网络事件指标与可靠传输收集器
//  4. network.Init: 绑定监听地址，失败时整体失败
//
// 网络初始化失败时 initErr 保存原始的 *InitializationError。
func buildFxApp(ctx context.Context, cfg netif.NetConfig, o *options, node *Node) (*fx.App, error) {
	modules := []fx.Option{
		// 配置注入
		fx.Supply(&o.transport),
		fx.Supply(&o.noise),

		transport.Module(),
		security.Module(),
		metrics.Module,
	}
	if o.hub != nil {
		modules = append(modules, fx.Supply(o.hub))
	}
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}

	var (
		initErr error
		built   *network.Network
		builtTM *transport.Manager
	)
	modules = append(modules, fx.Invoke(func(
		lc fx.Lifecycle,
		tm *transport.Manager,
		factory securityif.HandshakerFactory,
		m *metrics.Metrics,
		tc *metrics.TransportCollector,
	) error {
		builtTM = tm
		for name, src := range tm.StatsSources() {
			tc.Add(name, src)
		}
		if o.handshaker != nil {
			factory = o.handshaker
		}
		var obs network.Observer = m
		if o.observer != nil {
			obs = observers{m, o.observer}
		}

		n, in, err := network.Init(ctx, cfg, network.Deps{
			Codec:      o.codec,
			Providers:  tm.Providers(),
			Handshaker: factory,
		}, network.WithConfig(o.network), network.WithObserver(obs))
		if err != nil {
			initErr = err
			tm.Close()
			return err
		}

		built = n
		node.net, node.in = n, in
		node.transports, node.metrics = tm, m
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return n.Close()
			},
		})
		return nil
	}))

	// 用户自定义选项
	modules = append(modules, o.fxOptions...)

	// 默认静默，WithFxLogs 时输出到日志组件
	fxLogs := o.fxLogs
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		if fxLogs {
			return &fxevent.ZapLogger{Logger: log.Zap("p2pnet/fx")}
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		if initErr != nil {
			return nil, initErr
		}
		// 之后的选项失败时生命周期钩子不会运行，已绑定的监听须在这里释放
		if built != nil {
			if cerr := built.Close(); cerr != nil {
				fxLogger.Debug("关闭网络失败", "error", cerr)
			}
			node.net, node.in = nil, nil
		}
		if builtTM != nil {
			if cerr := builtTM.Close(); cerr != nil {
				fxLogger.Debug("关闭传输管理器失败", "error", cerr)
			}
		}
		fxLogger.Error("构建 fx 应用失败", "error", err)
		return nil, &netif.InitializationError{Err: err}
	}
	return app, nil
}

// observers 按顺序转发给多个钩子
type observers []network.Observer

func (os observers) HandshakeStarted(dir types.Direction) {
	for _, o := range os {
		o.HandshakeStarted(dir)
	}
}

func (os observers) HandshakeCompleted(dir types.Direction, err error) {
	for _, o := range os {
		o.HandshakeCompleted(dir, err)
	}
}

func (os observers) ListenerOpened(addr types.Address) {
	for _, o := range os {
		o.ListenerOpened(addr)
	}
}

func (os observers) ListenerClosed(addr types.Address) {
	for _, o := range os {
		o.ListenerClosed(addr)
	}
}
