package transport

import "errors"

var (
	// ErrNoTransport 没有启用任何提供者
	ErrNoTransport = errors.New("transport: no provider enabled")
)
