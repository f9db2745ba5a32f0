package p2pnet

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pnet/config"
	"github.com/dep2p/go-p2pnet/internal/core/network"
	"github.com/dep2p/go-p2pnet/internal/core/security/noise"
	"github.com/dep2p/go-p2pnet/internal/core/transport"
	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/security"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	network   network.Config
	transport transport.Config
	noise     noise.Config

	hub        *memory.Hub
	codec      netif.AddressCodec
	handshaker security.HandshakerFactory

	registerer prometheus.Registerer
	observer   network.Observer

	fxLogs    bool
	fxOptions []fx.Option
}

func defaultOptions() options {
	return options{
		network:   network.DefaultConfig(),
		transport: transport.NewConfig(),
		noise:     noise.DefaultConfig(),
	}
}

// WithNetworkConfig 设置网络调优参数
func WithNetworkConfig(cfg network.Config) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.network = cfg
		return nil
	}
}

// WithTransportConfig 替换传输层配置
func WithTransportConfig(cfg transport.Config) Option {
	return func(o *options) error {
		o.transport = cfg
		return nil
	}
}

// WithTCP 启用或禁用 TCP
func WithTCP(enable bool) Option {
	return func(o *options) error {
		o.transport.EnableTCP = enable
		return nil
	}
}

// WithWebSocket 启用或禁用 WebSocket
func WithWebSocket(enable bool) Option {
	return func(o *options) error {
		o.transport.EnableWebSocket = enable
		return nil
	}
}

// WithQUIC 启用或禁用 QUIC
func WithQUIC(enable bool) Option {
	return func(o *options) error {
		o.transport.EnableQUIC = enable
		return nil
	}
}

// WithUDP 启用或禁用 UDP（数据报之上的可靠传输栈）
func WithUDP(enable bool) Option {
	return func(o *options) error {
		o.transport.EnableUDP = enable
		return nil
	}
}

// WithMemory 启用进程内模拟网络
//
// 共享同一 hub 的节点可以互相连接；hub 为 nil 时每个节点使用独立的 hub。
func WithMemory(hub *memory.Hub) Option {
	return func(o *options) error {
		o.transport.EnableMemory = true
		o.hub = hub
		return nil
	}
}

// WithAddressCodec 替换地址校验器
func WithAddressCodec(c netif.AddressCodec) Option {
	return func(o *options) error {
		o.codec = c
		return nil
	}
}

// WithHandshaker 替换握手器工厂（默认 Noise XX）
func WithHandshaker(f security.HandshakerFactory) Option {
	return func(o *options) error {
		if f == nil {
			return ErrNilHandshaker
		}
		o.handshaker = f
		return nil
	}
}

// WithRegisterer 启用 Prometheus 指标并注册到 reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithObserver 额外的网络事件钩子，与指标同时生效
func WithObserver(obs network.Observer) Option {
	return func(o *options) error {
		o.observer = obs
		return nil
	}
}

// WithFxLogs 输出 fx 依赖注入事件日志
func WithFxLogs(enable bool) Option {
	return func(o *options) error {
		o.fxLogs = enable
		return nil
	}
}

// WithFxOptions 追加自定义 fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}

// WithConfig 应用配置文件中的网络、传输与握手参数
//
// 身份与监听地址不在此处理，见 LoadIdentity 与 ParseListenAddrs。
func WithConfig(c *config.Config) Option {
	return func(o *options) error {
		if err := c.Validate(); err != nil {
			return err
		}
		o.network = NetworkConfigFrom(c.Network)
		o.transport = TransportConfigFrom(c.Transport)
		o.noise = noise.Config{ResumeCacheSize: c.Security.ResumeCacheSize}
		if !c.Network.AllowLoopback {
			codec, err := codecFrom(c.Network)
			if err != nil {
				return err
			}
			o.codec = codec
		}
		return nil
	}
}
