package transport

import (
	"context"
	"io"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pnet/internal/core/transport/memnet"
	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	"github.com/dep2p/go-p2pnet/internal/core/transport/quic"
	"github.com/dep2p/go-p2pnet/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pnet/internal/core/transport/udpnet"
	"github.com/dep2p/go-p2pnet/internal/core/transport/websocket"
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	transportif "github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// Config 传输层配置
type Config struct {
	// 协议开关
	EnableTCP       bool
	EnableWebSocket bool
	EnableQUIC      bool
	EnableUDP       bool
	EnableMemory    bool

	TCP       tcp.Config
	WebSocket websocket.Config
	QUIC      quic.Config
	UDP       udpnet.Config
	Memory    memnet.Config
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		EnableTCP:       true,
		EnableWebSocket: false,
		EnableQUIC:      true,
		EnableUDP:       false,
		EnableMemory:    false,

		TCP:       tcp.DefaultConfig(),
		WebSocket: websocket.DefaultConfig(),
		QUIC:      quic.DefaultConfig(),
		UDP:       udpnet.DefaultConfig(),
		Memory:    memnet.DefaultConfig(),
	}
}

// Manager 管理已创建的通道提供者
type Manager struct {
	providers []netif.ChannelProvider
	stats     map[string]transportif.StatsSource
	closers   []io.Closer
}

// NewManager 按配置创建提供者
//
// 选择顺序：tcp、websocket、quic、udp、memnet。websocket 地址以 /ws 结尾，
// tcp 的 CanDial 不会误认；quic 地址以 /quic-v1 结尾，udp 同理。hub 为 nil 且启用内存网络时使用新的 hub。
func NewManager(cfg Config, hub *memory.Hub) (*Manager, error) {
	m := &Manager{stats: make(map[string]transportif.StatsSource)}

	if cfg.EnableTCP {
		m.add(tcp.New(cfg.TCP))
	}
	if cfg.EnableWebSocket {
		m.add(websocket.New(cfg.WebSocket))
	}
	if cfg.EnableQUIC {
		p, err := quic.New(cfg.QUIC)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.add(p)
	}
	if cfg.EnableUDP {
		m.add(udpnet.New(cfg.UDP))
	}
	if cfg.EnableMemory {
		m.add(memnet.New(hub, cfg.Memory))
	}

	if len(m.providers) == 0 {
		return nil, ErrNoTransport
	}
	logger.Info("传输管理器创建成功", "providers", len(m.providers))
	return m, nil
}

func (m *Manager) add(p netif.ChannelProvider) {
	m.providers = append(m.providers, p)
	if s, ok := p.(transportif.StatsSource); ok {
		m.stats[p.Name()] = s
	}
	if c, ok := p.(io.Closer); ok {
		m.closers = append(m.closers, c)
	}
	logger.Debug("通道提供者已创建", "name", p.Name())
}

// Providers 返回全部提供者
func (m *Manager) Providers() []netif.ChannelProvider {
	return m.providers
}

// StatsSources 返回可导出可靠传输统计的提供者，按名称索引
func (m *Manager) StatsSources() map[string]transportif.StatsSource {
	return m.stats
}

// Close 关闭持有资源的提供者
func (m *Manager) Close() error {
	var err error
	for _, c := range m.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// ============================================================================
//                              Fx 模块
// ============================================================================

// Params 传输层依赖
type Params struct {
	fx.In

	Config *Config     `optional:"true"`
	Hub    *memory.Hub `optional:"true"`
}

// Output Fx 输出
type Output struct {
	fx.Out

	Manager   *Manager
	Providers []netif.ChannelProvider `group:"providers,flatten"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供 Manager 与提供者列表
func ProvideManager(p Params) (Output, error) {
	cfg := NewConfig()
	if p.Config != nil {
		cfg = *p.Config
	}
	m, err := NewManager(cfg, p.Hub)
	if err != nil {
		return Output{}, err
	}
	return Output{Manager: m, Providers: m.Providers()}, nil
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return m.Close()
		},
	})
}
