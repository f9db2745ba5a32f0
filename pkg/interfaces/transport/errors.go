package transport

import (
	"errors"
	"fmt"
)

// 传输错误
var (
	// ErrClosed 传输已关闭
	ErrClosed = errors.New("transport: closed")

	// ErrCorrupted 单元校验失败并被丢弃（不同于丢失）
	ErrCorrupted = errors.New("transport: unit corrupted")

	// ErrRetryExhausted 重传预算耗尽
	ErrRetryExhausted = errors.New("transport: retry budget exhausted")

	// ErrUnitTooLarge 单元超过 MaxUnitSize
	ErrUnitTooLarge = errors.New("transport: unit too large")

	// ErrPeerClosed 对端已关闭链路
	ErrPeerClosed = errors.New("transport: closed by peer")

	// ErrPeerSilent 对端在空闲期限内没有任何帧到达
	ErrPeerSilent = errors.New("transport: peer silent")

	// ErrLayering 组合的各层不在同一条链上
	ErrLayering = errors.New("transport: layers are not stacked on one chain")
)

// GapError 序号缺口
//
// [From, To] 区间内的单元已确定丢失，之后的交付从 To+1 继续。
type GapError struct {
	From uint64
	To   uint64
}

func (e *GapError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("transport: sequence gap at %d", e.From)
	}
	return fmt.Sprintf("transport: sequence gap %d..%d", e.From, e.To)
}

// Missing 丢失的单元数
func (e *GapError) Missing() uint64 {
	return e.To - e.From + 1
}

// TransportError 单次收发失败
type TransportError struct {
	Op  string // "send" | "recv"
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InitError 传输创建失败
type InitError struct {
	Transport string
	Err       error
}

func (e *InitError) Error() string {
	return "transport: init " + e.Transport + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
