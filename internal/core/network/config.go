package network

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Config 网络调优参数（不属于 NetConfig）
type Config struct {
	// HandshakeTimeout 单次拨号加握手的时间上限
	HandshakeTimeout time.Duration

	// MaxConcurrentHandshakes 同时进行的握手上限（入站与出站共享）
	MaxConcurrentHandshakes int

	// IncomingBuffer incoming 流缓冲的结果数
	IncomingBuffer int

	// InboundRate 入站握手速率，rate.Inf 表示不限
	InboundRate rate.Limit

	// InboundBurst 入站握手突发量
	InboundBurst int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:        10 * time.Second,
		MaxConcurrentHandshakes: 64,
		IncomingBuffer:          32,
		InboundRate:             rate.Inf,
		InboundBurst:            16,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrentHandshakes <= 0 {
		return fmt.Errorf("%w: max concurrent handshakes must be positive", ErrInvalidConfig)
	}
	if c.IncomingBuffer < 0 {
		return fmt.Errorf("%w: negative incoming buffer", ErrInvalidConfig)
	}
	if c.InboundRate < 0 {
		return fmt.Errorf("%w: negative inbound rate", ErrInvalidConfig)
	}
	if c.InboundRate != rate.Inf && c.InboundBurst <= 0 {
		return fmt.Errorf("%w: inbound burst must be positive", ErrInvalidConfig)
	}
	return nil
}
