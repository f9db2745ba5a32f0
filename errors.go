package p2pnet

import "errors"

var (
	// ErrNilHandshaker 握手器工厂为空
	ErrNilHandshaker = errors.New("p2pnet: nil handshaker factory")
)
