package tcp

import "errors"

var (
	// ErrUnsupportedAddress 地址不是 TCP 地址
	ErrUnsupportedAddress = errors.New("tcp: unsupported address")

	// ErrNotTCPConn 底层连接不是 *net.TCPConn
	ErrNotTCPConn = errors.New("tcp: not a TCP connection")
)
