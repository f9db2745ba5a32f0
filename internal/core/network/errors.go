package network

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("network: invalid config")

	// ErrNoHandshaker 未提供握手器工厂
	ErrNoHandshaker = errors.New("network: no handshaker")
)

// ConnectionError.Op 取值
const (
	opValidate  = "validate"
	opDial      = "dial"
	opAccept    = "accept"
	opHandshake = "handshake"
)
