package p2pnet

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-p2pnet/config"
	"github.com/dep2p/go-p2pnet/internal/core/addrcodec"
	"github.com/dep2p/go-p2pnet/internal/core/network"
	"github.com/dep2p/go-p2pnet/internal/core/transport"
	"github.com/dep2p/go-p2pnet/internal/core/transport/checking"
	"github.com/dep2p/go-p2pnet/internal/core/transport/memnet"
	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	"github.com/dep2p/go-p2pnet/internal/core/transport/quic"
	"github.com/dep2p/go-p2pnet/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pnet/internal/core/transport/udpnet"
	"github.com/dep2p/go-p2pnet/internal/core/transport/websocket"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// ============================================================================
//                              配置文件 → 组件配置
// ============================================================================

// NetworkConfigFrom 转换网络配置，InboundRate 为 0 表示不限速
func NetworkConfigFrom(c config.NetworkConfig) network.Config {
	limit := rate.Inf
	if c.InboundRate > 0 {
		limit = rate.Limit(c.InboundRate)
	}
	return network.Config{
		HandshakeTimeout:        c.HandshakeTimeout.Duration(),
		MaxConcurrentHandshakes: c.MaxConcurrentHandshakes,
		IncomingBuffer:          c.IncomingBuffer,
		InboundRate:             limit,
		InboundBurst:            c.InboundBurst,
	}
}

// TransportConfigFrom 转换传输层配置
func TransportConfigFrom(c config.TransportConfig) transport.Config {
	mem := memnet.DefaultConfig()
	mem.Reliable.Checking.Algorithm = checking.Algorithm(c.Memory.Checksum)
	mem.Reliable.Byzantine.MaxRetries = c.Memory.MaxRetries
	mem.Reliable.Byzantine.RetryTimeout = c.Memory.RetryTimeout.Duration()
	mem.Reliable.Byzantine.MaxRetryTimeout = c.Memory.MaxRetryTimeout.Duration()
	mem.Reliable.Sequencing.Window = c.Memory.Window
	if c.Memory.MTU > 0 {
		mem.MTU = c.Memory.MTU
	}
	mem.Faults = memory.Faults{
		Drop:      c.Memory.Faults.Drop,
		Duplicate: c.Memory.Faults.Duplicate,
		Corrupt:   c.Memory.Faults.Corrupt,
		Reorder:   c.Memory.Faults.Reorder,
		Seed:      c.Memory.Faults.Seed,
	}

	udp := udpnet.DefaultConfig()
	udp.Reliable.Checking.Algorithm = checking.Algorithm(c.UDP.Checksum)
	udp.Reliable.Byzantine.MaxRetries = c.UDP.MaxRetries
	udp.Reliable.Byzantine.RetryTimeout = c.UDP.RetryTimeout.Duration()
	udp.Reliable.Byzantine.MaxRetryTimeout = c.UDP.MaxRetryTimeout.Duration()
	udp.Reliable.Byzantine.IdleTimeout = c.UDP.IdleTimeout.Duration()
	udp.Reliable.Sequencing.Window = c.UDP.Window
	if c.UDP.MTU > 0 {
		udp.MTU = c.UDP.MTU
	}
	if c.UDP.Backlog > 0 {
		udp.Backlog = c.UDP.Backlog
	}

	return transport.Config{
		EnableTCP:       c.EnableTCP,
		EnableWebSocket: c.EnableWebSocket,
		EnableQUIC:      c.EnableQUIC,
		EnableUDP:       c.EnableUDP,
		EnableMemory:    c.EnableMemory,

		TCP: tcp.Config{
			DialTimeout: c.TCP.DialTimeout.Duration(),
			KeepAlive:   c.TCP.KeepAlive.Duration(),
		},
		WebSocket: websocket.Config{
			HandshakeTimeout: c.WebSocket.HandshakeTimeout.Duration(),
			ReadBufferSize:   c.WebSocket.ReadBufferSize,
			WriteBufferSize:  c.WebSocket.WriteBufferSize,
			Path:             c.WebSocket.Path,
		},
		QUIC: quic.Config{
			HandshakeIdleTimeout: c.QUIC.HandshakeIdleTimeout.Duration(),
			MaxIdleTimeout:       c.QUIC.MaxIdleTimeout.Duration(),
			KeepAlivePeriod:      c.QUIC.KeepAlivePeriod.Duration(),
		},
		UDP:    udp,
		Memory: mem,
	}
}

func codecFrom(c config.NetworkConfig) (*addrcodec.Codec, error) {
	cfg := addrcodec.DefaultConfig()
	cfg.AllowLoopback = c.AllowLoopback
	return addrcodec.New(cfg)
}

// ParseListenAddrs 解析配置中的监听地址
func ParseListenAddrs(c *config.Config) ([]types.Address, error) {
	addrs, err := types.ParseAddresses(c.ListenAddrs...)
	if err != nil {
		return nil, fmt.Errorf("listen_addrs: %w", err)
	}
	return addrs, nil
}
