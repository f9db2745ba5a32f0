package network

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-p2pnet/pkg/types"
)

// 网络错误
var (
	// ErrStreamClosed incoming 流已结束
	ErrStreamClosed = errors.New("network: incoming stream closed")

	// ErrNetworkClosed 网络已关闭
	ErrNetworkClosed = errors.New("network: closed")

	// ErrKeyMismatch 私钥与公钥不匹配
	ErrKeyMismatch = errors.New("network: private key does not match public key")

	// ErrMissingKey 未提供密钥
	ErrMissingKey = errors.New("network: missing key material")

	// ErrNoProvider 没有可处理该地址的通道提供者
	ErrNoProvider = errors.New("network: no channel provider for address")

	// ErrAlreadyListening 地址已在监听
	ErrAlreadyListening = errors.New("network: already listening on address")
)

// InitializationError 初始化失败
//
// Addr 为空表示与地址无关的失败（如密钥无效）。
type InitializationError struct {
	Addr types.Address
	Err  error
}

func (e *InitializationError) Error() string {
	if e.Addr.IsZero() {
		return "network: init: " + e.Err.Error()
	}
	return fmt.Sprintf("network: init %s: %v", e.Addr, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// ConnectionError 单个连接失败
//
// 只出现在 incoming 流上，不影响其他连接。
type ConnectionError struct {
	RemoteID  types.NodeID
	Addr      types.Address
	Direction types.Direction
	Op        string // "dial" | "accept" | "handshake" | "validate"
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("network: %s %s %s: %v", e.Direction, e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
