package config

import (
	"fmt"
	"time"
)

// TransportConfig 传输层配置
//
// 配置节点启用的通道提供者及其参数：
//   - TCP: /ip4/.../tcp/...
//   - WebSocket: /ip4/.../tcp/.../ws
//   - QUIC: /ip4/.../udp/.../quic-v1
//   - UDP: /ip4/.../udp/...，数据报之上的可靠传输栈
//   - Memory: /memory/<name>，进程内模拟网络（测试与演示）
type TransportConfig struct {
	// TCP 配置
	EnableTCP bool      `json:"enable_tcp"`
	TCP       TCPConfig `json:"tcp,omitempty"`

	// WebSocket 配置
	EnableWebSocket bool            `json:"enable_websocket"`
	WebSocket       WebSocketConfig `json:"websocket,omitempty"`

	// QUIC 配置
	EnableQUIC bool       `json:"enable_quic"`
	QUIC       QUICConfig `json:"quic,omitempty"`

	// UDP 配置
	EnableUDP bool      `json:"enable_udp"`
	UDP       UDPConfig `json:"udp,omitempty"`

	// Memory 模拟网络配置
	EnableMemory bool         `json:"enable_memory"`
	Memory       MemoryConfig `json:"memory,omitempty"`
}

// TCPConfig TCP 传输配置
type TCPConfig struct {
	// DialTimeout 拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// KeepAlive keep-alive 周期，负值禁用
	KeepAlive Duration `json:"keep_alive"`
}

// WebSocketConfig WebSocket 传输配置
type WebSocketConfig struct {
	// HandshakeTimeout HTTP 升级超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// Path 升级请求路径
	Path string `json:"path"`

	// ReadBufferSize 读缓冲区大小
	ReadBufferSize int `json:"read_buffer_size"`

	// WriteBufferSize 写缓冲区大小
	WriteBufferSize int `json:"write_buffer_size"`
}

// QUICConfig QUIC 传输配置
type QUICConfig struct {
	// HandshakeIdleTimeout 握手超时
	HandshakeIdleTimeout Duration `json:"handshake_idle_timeout"`

	// MaxIdleTimeout 最大空闲超时
	MaxIdleTimeout Duration `json:"max_idle_timeout"`

	// KeepAlivePeriod 保活周期，0 禁用
	KeepAlivePeriod Duration `json:"keep_alive_period"`
}

// UDPConfig UDP 传输配置
type UDPConfig struct {
	// Checksum 损坏检测摘要，可选 "blake3"（默认）、"murmur3"
	Checksum string `json:"checksum"`

	// MaxRetries 首发之外的最大重传次数
	MaxRetries int `json:"max_retries"`

	// RetryTimeout 首次等待确认的时间，之后逐次翻倍
	RetryTimeout Duration `json:"retry_timeout"`

	// MaxRetryTimeout 单次等待上限
	MaxRetryTimeout Duration `json:"max_retry_timeout"`

	// IdleTimeout 对端静默上限，0 按重传预算推导
	IdleTimeout Duration `json:"idle_timeout"`

	// Window 排序层最多缓存的乱序单元数
	Window int `json:"window"`

	// MTU 数据报载荷上限
	MTU int `json:"mtu"`

	// Backlog 未接受链路队列长度
	Backlog int `json:"backlog"`
}

// MemoryConfig 模拟网络配置
type MemoryConfig struct {
	// Checksum 损坏检测摘要，可选 "blake3"（默认）、"murmur3"
	Checksum string `json:"checksum"`

	// MaxRetries 首发之外的最大重传次数
	MaxRetries int `json:"max_retries"`

	// RetryTimeout 首次等待确认的时间，之后逐次翻倍
	RetryTimeout Duration `json:"retry_timeout"`

	// MaxRetryTimeout 单次等待上限
	MaxRetryTimeout Duration `json:"max_retry_timeout"`

	// Window 排序层最多缓存的乱序单元数
	Window int `json:"window"`

	// MTU 底层单元上限
	MTU int `json:"mtu"`

	// Faults 链路故障注入
	Faults FaultConfig `json:"faults"`
}

// FaultConfig 故障概率，取值 [0, 1)
type FaultConfig struct {
	Drop      float64 `json:"drop"`
	Duplicate float64 `json:"duplicate"`
	Corrupt   float64 `json:"corrupt"`
	Reorder   float64 `json:"reorder"`

	// Seed 随机种子，0 表示随机
	Seed uint64 `json:"seed"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		EnableTCP: true,
		TCP: TCPConfig{
			DialTimeout: Duration(10 * time.Second),
			KeepAlive:   Duration(15 * time.Second),
		},
		EnableWebSocket: false,
		WebSocket: WebSocketConfig{
			HandshakeTimeout: Duration(10 * time.Second),
			Path:             "/",
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		EnableQUIC: true,
		QUIC: QUICConfig{
			HandshakeIdleTimeout: Duration(5 * time.Second),
			MaxIdleTimeout:       Duration(30 * time.Second),
			KeepAlivePeriod:      Duration(10 * time.Second),
		},
		EnableUDP: false,
		UDP: UDPConfig{
			Checksum:        "blake3",
			MaxRetries:      8,
			RetryTimeout:    Duration(200 * time.Millisecond),
			MaxRetryTimeout: Duration(2 * time.Second),
			Window:          64,
			MTU:             1200,
			Backlog:         16,
		},
		EnableMemory: false,
		Memory: MemoryConfig{
			Checksum:        "blake3",
			MaxRetries:      8,
			RetryTimeout:    Duration(200 * time.Millisecond),
			MaxRetryTimeout: Duration(2 * time.Second),
			Window:          64,
			MTU:             1400,
		},
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if !c.EnableTCP && !c.EnableWebSocket && !c.EnableQUIC && !c.EnableUDP && !c.EnableMemory {
		return fmt.Errorf("%w: at least one transport must be enabled", ErrInvalidValue)
	}
	if c.EnableTCP && c.TCP.DialTimeout <= 0 {
		return fmt.Errorf("%w: tcp.dial_timeout must be positive", ErrInvalidValue)
	}
	if c.EnableWebSocket {
		if c.WebSocket.HandshakeTimeout <= 0 {
			return fmt.Errorf("%w: websocket.handshake_timeout must be positive", ErrInvalidValue)
		}
		if c.WebSocket.Path == "" || c.WebSocket.Path[0] != '/' {
			return fmt.Errorf("%w: websocket.path must start with /", ErrInvalidValue)
		}
	}
	if c.EnableQUIC && c.QUIC.MaxIdleTimeout <= 0 {
		return fmt.Errorf("%w: quic.max_idle_timeout must be positive", ErrInvalidValue)
	}
	if c.EnableUDP {
		if err := c.UDP.Validate(); err != nil {
			return err
		}
	}
	if c.EnableMemory {
		return c.Memory.Validate()
	}
	return nil
}

// Validate 验证 UDP 配置
func (c UDPConfig) Validate() error {
	switch c.Checksum {
	case "", "blake3", "murmur3":
	default:
		return fmt.Errorf("%w: udp.checksum %q", ErrInvalidValue, c.Checksum)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: udp.max_retries must not be negative", ErrInvalidValue)
	}
	if c.RetryTimeout <= 0 || c.MaxRetryTimeout < c.RetryTimeout {
		return fmt.Errorf("%w: udp retry timeouts", ErrInvalidValue)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: udp.idle_timeout must not be negative", ErrInvalidValue)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: udp.window must be positive", ErrInvalidValue)
	}
	if c.MTU < 0 || c.MTU > 65507 {
		return fmt.Errorf("%w: udp.mtu %d", ErrInvalidValue, c.MTU)
	}
	return nil
}

// Validate 验证模拟网络配置
func (c MemoryConfig) Validate() error {
	switch c.Checksum {
	case "", "blake3", "murmur3":
	default:
		return fmt.Errorf("%w: memory.checksum %q", ErrInvalidValue, c.Checksum)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: memory.max_retries must not be negative", ErrInvalidValue)
	}
	if c.RetryTimeout <= 0 || c.MaxRetryTimeout < c.RetryTimeout {
		return fmt.Errorf("%w: memory retry timeouts", ErrInvalidValue)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: memory.window must be positive", ErrInvalidValue)
	}
	f := c.Faults
	for _, p := range []float64{f.Drop, f.Duplicate, f.Corrupt, f.Reorder} {
		if p < 0 || p >= 1 {
			return fmt.Errorf("%w: fault probability %v outside [0, 1)", ErrInvalidValue, p)
		}
	}
	return nil
}
