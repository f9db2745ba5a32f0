package websocket

import "errors"

var (
	// ErrUnsupportedAddress 地址不是 WebSocket 地址
	ErrUnsupportedAddress = errors.New("websocket: unsupported address")
)
