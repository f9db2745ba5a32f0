// Package reliable 将校验、确认、排序三层组合为可靠传输
//
// 层次（自下而上）：
//
//	LossyTransport  →  checking  →  byzantine  →  sequencing
//
// Transport 同时满足 SequencingTransport、ByzantineTransport 和
// CheckingTransport，收发经过最上层的排序层。Stream 在可靠传输之上
// 提供可半关闭的字节流（transport.DataChannel）。
package reliable

import (
	"errors"
	"fmt"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-p2pnet/internal/core/transport/byzantine"
	"github.com/dep2p/go-p2pnet/internal/core/transport/checking"
	"github.com/dep2p/go-p2pnet/internal/core/transport/sequencing"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
)

// Config 各层配置
type Config struct {
	Checking   checking.Config
	Byzantine  byzantine.Config
	Sequencing sequencing.Config
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Checking:   checking.DefaultConfig(),
		Byzantine:  byzantine.DefaultConfig(),
		Sequencing: sequencing.DefaultConfig(),
	}
}

// MinLowerUnitSize 下层单元的最小长度，不足时无法承载任何载荷
const MinLowerUnitSize = checking.DigestSize + 1 + varint.MaxLenUvarint63 + varint.MaxLenUvarint63 + 1

// Transport 可靠传输
type Transport struct {
	transport.SequencingTransport
	byz transport.ByzantineTransport
	chk transport.CheckingTransport
}

var _ transport.ReliableTransport = (*Transport)(nil)

// New 在 lower 之上构造完整的三层可靠传输
//
// New 接管 lower 的所有权：构造失败时 lower 也会被关闭。
func New(lower transport.LossyTransport, cfg Config) (*Transport, error) {
	if lower == nil {
		return nil, &transport.InitError{Transport: "reliable", Err: errors.New("nil lower transport")}
	}
	if lower.MaxUnitSize() < MinLowerUnitSize {
		lower.Close()
		return nil, &transport.InitError{
			Transport: "reliable",
			Err:       fmt.Errorf("%w: lower unit size %d", transport.ErrUnitTooLarge, lower.MaxUnitSize()),
		}
	}

	chk, err := checking.New(lower, cfg.Checking)
	if err != nil {
		lower.Close()
		return nil, err
	}
	byz, err := byzantine.New(chk, cfg.Byzantine)
	if err != nil {
		chk.Close()
		return nil, err
	}
	seq, err := sequencing.New(byz, cfg.Sequencing)
	if err != nil {
		byz.Close()
		return nil, err
	}
	return &Transport{SequencingTransport: seq, byz: byz, chk: chk}, nil
}

// layered 可以报告下层的传输
type layered interface {
	Lower() transport.LossyTransport
}

// Compose 把已构造好的三层组合为可靠传输
//
// seq 必须直接位于 byz 之上，byz 必须直接位于 chk 之上，
// 否则返回 transport.ErrLayering。
func Compose(seq transport.SequencingTransport, byz transport.ByzantineTransport, chk transport.CheckingTransport) (*Transport, error) {
	if seq == nil || byz == nil || chk == nil {
		return nil, transport.ErrLayering
	}
	if !stackedOn(seq, byz) || !stackedOn(byz, chk) {
		return nil, transport.ErrLayering
	}
	return &Transport{SequencingTransport: seq, byz: byz, chk: chk}, nil
}

func stackedOn(upper, lower transport.LossyTransport) bool {
	l, ok := upper.(layered)
	if !ok {
		return false
	}
	return l.Lower() == lower
}

// RetryStats 确认层统计
func (t *Transport) RetryStats() transport.RetryStats {
	return t.byz.RetryStats()
}

// IntegrityStats 校验层统计
func (t *Transport) IntegrityStats() transport.IntegrityStats {
	return t.chk.IntegrityStats()
}

// Close 自上而下关闭整条链
func (t *Transport) Close() error {
	return t.SequencingTransport.Close()
}
