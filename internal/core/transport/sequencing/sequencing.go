// Package sequencing 实现有序、无重复交付层
//
// 每个单元前置一个 varint 序号：
//
//	[seq:uvarint][payload]
//
// 接收侧按序交付，丢弃重复单元，乱序单元缓存在长度为 Window 的窗口内。
// 当窗口被填满而期望的序号仍未到达时，缺失区间被判定为丢失，
// Recv 以 *transport.GapError 报告一次，随后从窗口中最小序号继续交付。
package sequencing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
)

var logger = log.Logger("transport/sequencing")

// DefaultWindow 默认乱序窗口
const DefaultWindow = 64

// Config 排序层配置
type Config struct {
	// Window 最多缓存的乱序单元数
	Window int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Window: DefaultWindow}
}

// Transport 排序层
type Transport struct {
	lower  transport.LossyTransport
	window int

	sendSeq atomic.Uint64

	rmu     sync.Mutex
	next    uint64
	pending map[uint64][]byte
	buf     []byte

	delivered, duplicates, reordered, gaps, skipped, malformed atomic.Uint64
}

var _ transport.SequencingTransport = (*Transport)(nil)

// New 在 lower 之上构造排序层
func New(lower transport.LossyTransport, cfg Config) (*Transport, error) {
	if lower == nil {
		return nil, &transport.InitError{Transport: "sequencing", Err: errors.New("nil lower transport")}
	}
	if lower.MaxUnitSize() <= varint.MaxLenUvarint63 {
		return nil, &transport.InitError{Transport: "sequencing", Err: transport.ErrUnitTooLarge}
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Transport{
		lower:   lower,
		window:  cfg.Window,
		pending: make(map[uint64][]byte),
		buf:     make([]byte, lower.MaxUnitSize()),
	}, nil
}

// Lower 返回下层传输
func (t *Transport) Lower() transport.LossyTransport { return t.lower }

// MaxUnitSize 下层上限减去最长序号头
func (t *Transport) MaxUnitSize() int {
	return t.lower.MaxUnitSize() - varint.MaxLenUvarint63
}

// Send 分配下一个序号并发送
func (t *Transport) Send(ctx context.Context, p []byte) (int, error) {
	if len(p) > t.MaxUnitSize() {
		return 0, &transport.TransportError{Op: "send", Err: transport.ErrUnitTooLarge}
	}
	seq := t.sendSeq.Add(1) - 1
	frame := make([]byte, varint.UvarintSize(seq)+len(p))
	n := varint.PutUvarint(frame, seq)
	copy(frame[n:], p)
	if _, err := t.lower.Send(ctx, frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Recv 按序交付下一个单元
//
// 返回的错误：
//   - *transport.GapError：缺口已跳过，再次调用继续交付
//   - io.ErrShortBuffer：p 太小，该单元被消费
//   - 下层错误原样返回（如 ErrCorrupted，可继续调用）
func (t *Transport) Recv(ctx context.Context, p []byte) (int, error) {
	t.rmu.Lock()
	defer t.rmu.Unlock()

	for {
		if u, ok := t.pending[t.next]; ok {
			delete(t.pending, t.next)
			return t.deliver(p, u)
		}
		if len(t.pending) >= t.window {
			return 0, t.skipGap()
		}

		n, err := t.lower.Recv(ctx, t.buf)
		if err != nil {
			return 0, err
		}
		seq, hl, err := varint.FromUvarint(t.buf[:n])
		if err != nil {
			t.malformed.Add(1)
			logger.Debug("丢弃无法解析的单元", "error", err)
			continue
		}
		payload := t.buf[hl:n]

		switch {
		case seq < t.next:
			t.duplicates.Add(1)
		case seq == t.next:
			return t.deliver(p, payload)
		default:
			if _, dup := t.pending[seq]; dup {
				t.duplicates.Add(1)
				continue
			}
			t.pending[seq] = append([]byte(nil), payload...)
			t.reordered.Add(1)
		}
	}
}

// deliver 调用方持有 rmu
func (t *Transport) deliver(p, u []byte) (int, error) {
	t.next++
	t.delivered.Add(1)
	if len(u) > len(p) {
		return 0, &transport.TransportError{Op: "recv", Err: io.ErrShortBuffer}
	}
	return copy(p, u), nil
}

// skipGap 调用方持有 rmu
func (t *Transport) skipGap() error {
	lowest := uint64(0)
	first := true
	for seq := range t.pending {
		if first || seq < lowest {
			lowest, first = seq, false
		}
	}
	gap := &transport.GapError{From: t.next, To: lowest - 1}
	t.gaps.Add(1)
	t.skipped.Add(gap.Missing())
	t.next = lowest
	logger.Debug("序号缺口", "from", gap.From, "to", gap.To)
	return gap
}

// SequenceStats 返回统计快照
func (t *Transport) SequenceStats() transport.SequenceStats {
	return transport.SequenceStats{
		Delivered:  t.delivered.Load(),
		Duplicates: t.duplicates.Load(),
		Reordered:  t.reordered.Load(),
		Gaps:       t.gaps.Load(),
		Skipped:    t.skipped.Load(),
		Malformed:  t.malformed.Load(),
	}
}

// Close 关闭下层
func (t *Transport) Close() error {
	return t.lower.Close()
}

// String 调试输出
func (t *Transport) String() string {
	return fmt.Sprintf("sequencing{window=%d}", t.window)
}
