// Package transport 定义传输能力接口
//
// 可靠传输由相互独立的能力组合而成，每种能力是一个 Go 接口：
//
//	Transport            可关闭的传输基类
//	LossyTransport       尽力而为的数据单元收发（可能丢失、乱序、重复）
//	SequencingTransport  有序、无重复交付
//	ByzantineTransport   确认 / 否认 / 重传预算
//	CheckingTransport    损坏检测（损坏单元被识别并丢弃）
//	ReliableTransport    以上三者的交集
//	DataTransport        可承载上层数据流的标记
//
// 能力在构造时静态满足：某个类型要么实现了接口，要么编译失败。
// 实现位于 internal/core/transport 下的各子包。
package transport

import (
	"context"
	"io"

	"github.com/dep2p/go-p2pnet/pkg/types"
)

// ============================================================================
//                              基础能力
// ============================================================================

// Transport 可关闭的传输
//
// Close 幂等；关闭后所有阻塞中的操作返回 ErrClosed。
type Transport interface {
	Close() error
}

// Factory 从初始化数据异步创建传输
//
// 失败时返回 *InitError；ctx 取消时中止创建。
type Factory[D any, T Transport] func(ctx context.Context, init D) (T, error)

// LossyTransport 尽力而为的数据单元传输
//
// 不保证送达、顺序或唯一性。每次 Send 发送一个完整单元，
// 每次 Recv 接收一个完整单元；单元不超过 MaxUnitSize 字节。
type LossyTransport interface {
	Transport

	// Send 发送一个单元，返回写入的载荷字节数
	Send(ctx context.Context, p []byte) (int, error)

	// Recv 阻塞直到收到一个单元或 ctx 结束
	//
	// p 不足以容纳单元时返回 io.ErrShortBuffer，该单元被丢弃。
	Recv(ctx context.Context, p []byte) (int, error)

	// MaxUnitSize 单个单元的最大载荷
	MaxUnitSize() int
}

// ============================================================================
//                              组合能力
// ============================================================================

// SequenceStats 排序层统计
type SequenceStats struct {
	Delivered  uint64 // 按序交付的单元数
	Duplicates uint64 // 丢弃的重复单元
	Reordered  uint64 // 乱序到达后被缓冲的单元
	Gaps       uint64 // 报告的缺口次数
	Skipped    uint64 // 缺口跳过的序号总数
	Malformed  uint64 // 无法解析的单元
}

// Add 逐项相加
func (s SequenceStats) Add(o SequenceStats) SequenceStats {
	return SequenceStats{
		Delivered:  s.Delivered + o.Delivered,
		Duplicates: s.Duplicates + o.Duplicates,
		Reordered:  s.Reordered + o.Reordered,
		Gaps:       s.Gaps + o.Gaps,
		Skipped:    s.Skipped + o.Skipped,
		Malformed:  s.Malformed + o.Malformed,
	}
}

// SequencingTransport 有序、无重复交付
//
// 缺口以 *GapError 显式报告一次，之后从下一个可用单元继续。
type SequencingTransport interface {
	LossyTransport
	SequenceStats() SequenceStats
}

// RetryStats 确认/重传层统计
type RetryStats struct {
	Sent        uint64 // 首次发送的数据单元
	Retransmits uint64 // 重传次数（超时 + 否认）
	Acked       uint64 // 收到确认的单元
	Nacked      uint64 // 收到的否认
	Exhausted   uint64 // 耗尽预算而失败的发送
	Duplicates  uint64 // 接收侧丢弃的重复数据
}

// Add 逐项相加
func (s RetryStats) Add(o RetryStats) RetryStats {
	return RetryStats{
		Sent:        s.Sent + o.Sent,
		Retransmits: s.Retransmits + o.Retransmits,
		Acked:       s.Acked + o.Acked,
		Nacked:      s.Nacked + o.Nacked,
		Exhausted:   s.Exhausted + o.Exhausted,
		Duplicates:  s.Duplicates + o.Duplicates,
	}
}

// ByzantineTransport 确认 / 否认 / 重传
//
// 发送在重传预算内等待确认，预算耗尽返回 ErrRetryExhausted。
type ByzantineTransport interface {
	LossyTransport
	RetryStats() RetryStats
}

// IntegrityStats 校验层统计
type IntegrityStats struct {
	Verified  uint64 // 校验通过的单元
	Corrupted uint64 // 检测到损坏的单元
}

// Add 逐项相加
func (s IntegrityStats) Add(o IntegrityStats) IntegrityStats {
	return IntegrityStats{
		Verified:  s.Verified + o.Verified,
		Corrupted: s.Corrupted + o.Corrupted,
	}
}

// StatsSource 可导出三类统计的对象（可靠传输或其聚合）
type StatsSource interface {
	SequenceStats() SequenceStats
	RetryStats() RetryStats
	IntegrityStats() IntegrityStats
}

// CheckingTransport 损坏检测
//
// 损坏的单元不会交付，Recv 返回 ErrCorrupted（与丢失可区分）。
type CheckingTransport interface {
	LossyTransport
	IntegrityStats() IntegrityStats
}

// ReliableTransport 可靠传输：排序、确认、校验三种能力的交集
type ReliableTransport interface {
	SequencingTransport
	ByzantineTransport
	CheckingTransport
}

// ============================================================================
//                              数据通道
// ============================================================================

// DataTransport 可承载上层数据的传输标记
type DataTransport interface {
	Transport
	DataPlane()
}

// DataPlaneMarker 嵌入后即满足 DataTransport 的标记方法
type DataPlaneMarker struct{}

// DataPlane 标记方法
func (DataPlaneMarker) DataPlane() {}

// DataChannel 双向字节流通道
//
// 读写两端可独立关闭：CloseWrite 后对端读到 io.EOF；
// CloseRead 后本端不再读取。Close 同时关闭两端并释放资源。
type DataChannel interface {
	DataTransport
	io.Reader
	io.Writer

	// CloseRead 关闭读端
	CloseRead() error

	// CloseWrite 关闭写端，对端读到 io.EOF
	CloseWrite() error

	// LocalAddress 本端地址
	LocalAddress() types.Address

	// RemoteAddress 对端地址
	RemoteAddress() types.Address
}
