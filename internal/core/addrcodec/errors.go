package addrcodec

import "errors"

var (
	// ErrUnsupportedStack 协议栈不匹配任何模式
	ErrUnsupportedStack = errors.New("addrcodec: unsupported protocol stack")

	// ErrLoopbackNotAllowed 配置禁止回环地址
	ErrLoopbackNotAllowed = errors.New("addrcodec: loopback address not allowed")

	// ErrInvalidPattern 模式写法错误
	ErrInvalidPattern = errors.New("addrcodec: invalid pattern")
)
