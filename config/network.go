package config

import (
	"fmt"
	"time"
)

// NetworkConfig 网络调优配置
type NetworkConfig struct {
	// HandshakeTimeout 单次拨号加握手的时间上限
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// MaxConcurrentHandshakes 同时进行的握手上限
	MaxConcurrentHandshakes int `json:"max_concurrent_handshakes"`

	// IncomingBuffer incoming 流缓冲的结果数
	IncomingBuffer int `json:"incoming_buffer"`

	// InboundRate 每秒入站握手数，0 表示不限
	InboundRate float64 `json:"inbound_rate"`

	// InboundBurst 入站握手突发量
	InboundBurst int `json:"inbound_burst"`

	// AllowLoopback 是否接受回环地址
	AllowLoopback bool `json:"allow_loopback"`
}

// DefaultNetworkConfig 返回默认网络配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		HandshakeTimeout:        Duration(10 * time.Second),
		MaxConcurrentHandshakes: 64,
		IncomingBuffer:          32,
		InboundRate:             0,
		InboundBurst:            16,
		AllowLoopback:           true,
	}
}

// Validate 验证网络配置
func (c NetworkConfig) Validate() error {
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake_timeout must be positive", ErrInvalidValue)
	}
	if c.MaxConcurrentHandshakes <= 0 {
		return fmt.Errorf("%w: max_concurrent_handshakes must be positive", ErrInvalidValue)
	}
	if c.IncomingBuffer < 0 {
		return fmt.Errorf("%w: incoming_buffer must not be negative", ErrInvalidValue)
	}
	if c.InboundRate < 0 {
		return fmt.Errorf("%w: inbound_rate must not be negative", ErrInvalidValue)
	}
	if c.InboundRate > 0 && c.InboundBurst <= 0 {
		return fmt.Errorf("%w: inbound_burst must be positive when inbound_rate is set", ErrInvalidValue)
	}
	return nil
}
