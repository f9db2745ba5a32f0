package udpnet

import "errors"

var (
	// ErrUnsupportedAddress 地址不是 /<ip4|ip6>/<host>/udp/<port>
	ErrUnsupportedAddress = errors.New("udpnet: unsupported address")

	// ErrProviderClosed 提供者已关闭
	ErrProviderClosed = errors.New("udpnet: provider closed")
)
