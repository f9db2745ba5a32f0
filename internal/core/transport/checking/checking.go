// Package checking 实现损坏检测层
//
// 每个单元追加 8 字节摘要：
//
//	[payload][digest:8]
//
// 摘要算法默认为 BLAKE3（截断为 64 位），可选 Murmur3-64。
// 校验失败的单元被丢弃，Recv 返回 transport.ErrCorrupted，
// 上层据此区分损坏与丢失。
package checking

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
	"lukechampine.com/blake3"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
)

var logger = log.Logger("transport/checking")

// DigestSize 摘要长度
const DigestSize = 8

// Algorithm 摘要算法
type Algorithm string

const (
	// AlgorithmBLAKE3 BLAKE3-256 截断为 64 位
	AlgorithmBLAKE3 Algorithm = "blake3"
	// AlgorithmMurmur3 Murmur3 64 位
	AlgorithmMurmur3 Algorithm = "murmur3"
)

// Config 校验层配置
type Config struct {
	Algorithm Algorithm
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Algorithm: AlgorithmBLAKE3}
}

func (c Config) digest() (func([]byte) uint64, error) {
	switch c.Algorithm {
	case AlgorithmBLAKE3, "":
		return func(b []byte) uint64 {
			sum := blake3.Sum256(b)
			return binary.BigEndian.Uint64(sum[:DigestSize])
		}, nil
	case AlgorithmMurmur3:
		return murmur3.Sum64, nil
	}
	return nil, fmt.Errorf("checking: unknown algorithm %q", c.Algorithm)
}

// Transport 校验层
type Transport struct {
	lower  transport.LossyTransport
	digest func([]byte) uint64
	pool   sync.Pool

	verified, corrupted atomic.Uint64
}

var _ transport.CheckingTransport = (*Transport)(nil)

// New 在 lower 之上构造校验层
func New(lower transport.LossyTransport, cfg Config) (*Transport, error) {
	if lower == nil {
		return nil, &transport.InitError{Transport: "checking", Err: fmt.Errorf("nil lower transport")}
	}
	if lower.MaxUnitSize() <= DigestSize {
		return nil, &transport.InitError{Transport: "checking", Err: transport.ErrUnitTooLarge}
	}
	digest, err := cfg.digest()
	if err != nil {
		return nil, &transport.InitError{Transport: "checking", Err: err}
	}
	t := &Transport{lower: lower, digest: digest}
	size := lower.MaxUnitSize()
	t.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return t, nil
}

// Lower 返回下层传输
func (t *Transport) Lower() transport.LossyTransport { return t.lower }

// MaxUnitSize 下层上限减去摘要
func (t *Transport) MaxUnitSize() int {
	return t.lower.MaxUnitSize() - DigestSize
}

// Send 追加摘要后发送
func (t *Transport) Send(ctx context.Context, p []byte) (int, error) {
	if len(p) > t.MaxUnitSize() {
		return 0, &transport.TransportError{Op: "send", Err: transport.ErrUnitTooLarge}
	}
	frame := make([]byte, len(p)+DigestSize)
	copy(frame, p)
	binary.BigEndian.PutUint64(frame[len(p):], t.digest(p))
	if _, err := t.lower.Send(ctx, frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Recv 接收并校验一个单元
//
// 损坏单元返回 ErrCorrupted，调用方可继续 Recv。
func (t *Transport) Recv(ctx context.Context, p []byte) (int, error) {
	bp := t.pool.Get().(*[]byte)
	defer t.pool.Put(bp)
	buf := *bp

	n, err := t.lower.Recv(ctx, buf)
	if err != nil {
		return 0, err
	}
	if n < DigestSize {
		t.corrupted.Add(1)
		return 0, &transport.TransportError{Op: "recv", Err: transport.ErrCorrupted}
	}

	payload := buf[:n-DigestSize]
	want := binary.BigEndian.Uint64(buf[n-DigestSize : n])
	if t.digest(payload) != want {
		t.corrupted.Add(1)
		logger.Debug("丢弃损坏单元", "size", n)
		return 0, &transport.TransportError{Op: "recv", Err: transport.ErrCorrupted}
	}
	t.verified.Add(1)

	if len(payload) > len(p) {
		return 0, &transport.TransportError{Op: "recv", Err: io.ErrShortBuffer}
	}
	return copy(p, payload), nil
}

// IntegrityStats 返回统计快照
func (t *Transport) IntegrityStats() transport.IntegrityStats {
	return transport.IntegrityStats{
		Verified:  t.verified.Load(),
		Corrupted: t.corrupted.Load(),
	}
}

// Close 关闭下层
func (t *Transport) Close() error {
	return t.lower.Close()
}

// Seal 计算 payload 的帧，供测试与诊断使用
func Seal(cfg Config, payload []byte) ([]byte, error) {
	digest, err := cfg.digest()
	if err != nil {
		return nil, err
	}
	frame := bytes.Clone(payload)
	return binary.BigEndian.AppendUint64(frame, digest(payload)), nil
}
