package quic

import "errors"

var (
	// ErrUnsupportedAddress 地址不是 QUIC 地址
	ErrUnsupportedAddress = errors.New("quic: unsupported address")

	// ErrBadPreamble 流前导字节不正确
	ErrBadPreamble = errors.New("quic: bad stream preamble")
)
