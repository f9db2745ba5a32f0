package memnet

import "errors"

var (
	// ErrUnsupportedAddress 地址不是 /memory/<name>
	ErrUnsupportedAddress = errors.New("memnet: unsupported address")

	// ErrAddressInUse 监听地址已被占用
	ErrAddressInUse = errors.New("memnet: address in use")

	// ErrConnectionRefused 目标地址无监听者
	ErrConnectionRefused = errors.New("memnet: connection refused")

	// ErrProviderClosed 提供者已关闭
	ErrProviderClosed = errors.New("memnet: provider closed")
)
