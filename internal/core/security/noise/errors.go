package noise

import "errors"

var (
	// ErrInvalidPayload 握手 payload 无法解析
	ErrInvalidPayload = errors.New("noise: invalid handshake payload")

	// ErrFrameTooLarge 帧超过 65535 字节
	ErrFrameTooLarge = errors.New("noise: frame too large")

	// ErrUnexpectedEOF 握手期间收到空帧
	ErrUnexpectedEOF = errors.New("noise: unexpected empty frame during handshake")

	// ErrUnauthenticatedClose 会话期间收到未加密的空帧
	ErrUnauthenticatedClose = errors.New("noise: unauthenticated close frame")

	// ErrResumeMismatch 响应方确认的恢复纪元不合法
	ErrResumeMismatch = errors.New("noise: unexpected resumption epoch")
)
