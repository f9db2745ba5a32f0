package multiaddr

import "errors"

// 通用错误
var (
	ErrInvalidMultiaddr = errors.New("multiaddr: invalid multiaddr")
	ErrUnknownProtocol  = errors.New("multiaddr: unknown protocol")
	ErrInvalidValue     = errors.New("multiaddr: invalid protocol value")
	ErrTruncated        = errors.New("multiaddr: truncated data")
	ErrNoSuchProtocol   = errors.New("multiaddr: protocol not present")
	ErrNotNetAddr       = errors.New("multiaddr: not convertible to net.Addr")
)
