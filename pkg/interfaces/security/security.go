// Package security 定义握手契约
//
// 握手在原始通道上完成相互认证与密钥交换，产出加密会话。
// 具体算法由实现决定（internal/core/security/noise），网络核心只依赖本接口。
package security

import (
	"context"
	"errors"
	"io"

	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// 握手错误
var (
	// ErrHandshakeFailed 握手失败
	ErrHandshakeFailed = errors.New("security: handshake failed")

	// ErrPeerKeyMismatch 对端身份与期望的公钥不符
	ErrPeerKeyMismatch = errors.New("security: remote key mismatch")

	// ErrInvalidSignature 静态密钥签名无效
	ErrInvalidSignature = errors.New("security: invalid static key signature")
)

// Channel 握手所需的原始通道
//
// transport.DataChannel 与 *net.TCPConn 都满足该接口。
type Channel interface {
	io.ReadWriteCloser
	CloseRead() error
	CloseWrite() error
}

// SecureSession 握手后的加密会话
//
// 读写方向相互独立，可由不同 goroutine 并发使用。
type SecureSession interface {
	io.Reader
	io.Writer

	// CloseRead 关闭读方向
	CloseRead() error

	// CloseWrite 关闭写方向，对端读到 io.EOF
	CloseWrite() error

	// Close 关闭会话与底层通道
	Close() error

	// RemotePublicKey 经过认证的对端身份公钥
	RemotePublicKey() crypto.PublicKey

	// PersistentState 握手后更新的恢复状态
	PersistentState() types.PersistentState
}

// Handshaker 握手器
//
//go:generate mockgen -destination=mock/handshaker.go -package=mock . Handshaker
type Handshaker interface {
	// SecureOutbound 作为发起方握手
	//
	// remotePub 非空时，对端身份不符返回 ErrPeerKeyMismatch。
	// state 为上次连接保存的恢复状态，可为空。
	SecureOutbound(ctx context.Context, ch Channel, remotePub crypto.PublicKey, state types.PersistentState) (SecureSession, error)

	// SecureInbound 作为响应方握手
	SecureInbound(ctx context.Context, ch Channel) (SecureSession, error)
}

// HandshakerFactory 从身份私钥构造握手器
type HandshakerFactory func(priv crypto.PrivateKey) (Handshaker, error)
