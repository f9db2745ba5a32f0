package memory

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("transport/memory")

const (
	// DefaultMTU 默认单元上限
	DefaultMTU = 1400

	// DefaultInboxSize 默认接收队列长度
	DefaultInboxSize = 256
)

// Faults 故障注入概率，均在 [0, 1) 区间
type Faults struct {
	Drop      float64 // 丢弃
	Duplicate float64 // 重复投递
	Corrupt   float64 // 翻转一个比特
	Reorder   float64 // 扣留到下一个单元之后投递

	// Seed 随机种子，0 表示随机
	Seed uint64
}

func (f Faults) validate() error {
	for _, p := range []float64{f.Drop, f.Duplicate, f.Corrupt, f.Reorder} {
		if p < 0 || p >= 1 {
			return ErrInvalidFaults
		}
	}
	return nil
}

// InitData Transport 初始化数据
type InitData struct {
	Hub    *Hub
	Local  types.Address
	Remote types.Address
	Faults Faults

	// MTU 单元上限，0 使用 DefaultMTU
	MTU int
	// InboxSize 接收队列长度，0 使用 DefaultInboxSize
	InboxSize int
}

// Stats 端点统计
type Stats struct {
	Sent       uint64
	Dropped    uint64
	Duplicated uint64
	Corrupted  uint64
	Reordered  uint64
	Overflow   uint64 // 对端队列满导致的丢失
}

// Transport 绑定在 Hub 上的数据报端点
type Transport struct {
	hub    *Hub
	local  types.Address
	remote types.Address
	faults Faults
	mtu    int

	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	rng  *rand.Rand
	held []byte

	sent, dropped, duplicated, corrupted, reordered, overflow atomic.Uint64
}

var (
	_ transport.LossyTransport                = (*Transport)(nil)
	_ transport.Factory[InitData, *Transport] = Create
)

// Create 在 Hub 上绑定 Local 并创建端点
func Create(ctx context.Context, data InitData) (*Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, &transport.InitError{Transport: "memory", Err: err}
	}
	if data.Hub == nil {
		return nil, &transport.InitError{Transport: "memory", Err: ErrNilHub}
	}
	if err := data.Faults.validate(); err != nil {
		return nil, &transport.InitError{Transport: "memory", Err: err}
	}
	if data.MTU <= 0 {
		data.MTU = DefaultMTU
	}
	if data.InboxSize <= 0 {
		data.InboxSize = DefaultInboxSize
	}

	seed := data.Faults.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	t := &Transport{
		hub:    data.Hub,
		local:  data.Local,
		remote: data.Remote,
		faults: data.Faults,
		mtu:    data.MTU,
		inbox:  make(chan []byte, data.InboxSize),
		closed: make(chan struct{}),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	if err := data.Hub.bind(data.Local, t); err != nil {
		return nil, &transport.InitError{Transport: "memory", Err: err}
	}

	logger.Debug("内存端点已绑定", "local", data.Local, "remote", data.Remote)
	return t, nil
}

// LocalAddress 本端地址
func (t *Transport) LocalAddress() types.Address { return t.local }

// RemoteAddress 对端地址
func (t *Transport) RemoteAddress() types.Address { return t.remote }

// MaxUnitSize 单元上限
func (t *Transport) MaxUnitSize() int { return t.mtu }

// Send 发送一个单元
//
// 与 UDP 一致，成功返回只表示单元已交给网络。
func (t *Transport) Send(ctx context.Context, p []byte) (int, error) {
	if err := t.checkOpen(ctx); err != nil {
		return 0, &transport.TransportError{Op: "send", Err: err}
	}
	if len(p) > t.mtu {
		return 0, &transport.TransportError{Op: "send", Err: transport.ErrUnitTooLarge}
	}
	t.sent.Add(1)

	unit := bytes.Clone(p)
	if unit == nil {
		unit = []byte{}
	}

	t.mu.Lock()
	var out [][]byte
	switch {
	case t.roll(t.faults.Drop):
		t.dropped.Add(1)
	default:
		if len(unit) > 0 && t.roll(t.faults.Corrupt) {
			bit := t.rng.IntN(len(unit) * 8)
			unit[bit/8] ^= 1 << (bit % 8)
			t.corrupted.Add(1)
		}
		if t.held == nil && t.roll(t.faults.Reorder) {
			t.held = unit
			t.reordered.Add(1)
			break
		}
		out = append(out, unit)
		if t.roll(t.faults.Duplicate) {
			out = append(out, bytes.Clone(unit))
			t.duplicated.Add(1)
		}
		if t.held != nil {
			out = append(out, t.held)
			t.held = nil
		}
	}
	t.mu.Unlock()

	if len(out) > 0 {
		peer := t.hub.lookup(t.remote)
		for _, u := range out {
			if peer == nil || !peer.deliver(u) {
				t.overflow.Add(1)
			}
		}
	}
	return len(p), nil
}

// roll 调用方持有 t.mu
func (t *Transport) roll(p float64) bool {
	return p > 0 && t.rng.Float64() < p
}

func (t *Transport) deliver(u []byte) bool {
	select {
	case <-t.closed:
		return false
	default:
	}
	select {
	case t.inbox <- u:
		return true
	default:
		return false
	}
}

// Recv 接收一个单元
func (t *Transport) Recv(ctx context.Context, p []byte) (int, error) {
	if err := t.checkOpen(ctx); err != nil {
		return 0, &transport.TransportError{Op: "recv", Err: err}
	}
	select {
	case u := <-t.inbox:
		if len(u) > len(p) {
			return 0, &transport.TransportError{Op: "recv", Err: io.ErrShortBuffer}
		}
		return copy(p, u), nil
	case <-t.closed:
		return 0, &transport.TransportError{Op: "recv", Err: transport.ErrClosed}
	case <-ctx.Done():
		return 0, &transport.TransportError{Op: "recv", Err: ctx.Err()}
	}
}

func (t *Transport) checkOpen(ctx context.Context) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}
	return ctx.Err()
}

// Stats 返回统计快照
func (t *Transport) Stats() Stats {
	return Stats{
		Sent:       t.sent.Load(),
		Dropped:    t.dropped.Load(),
		Duplicated: t.duplicated.Load(),
		Corrupted:  t.corrupted.Load(),
		Reordered:  t.reordered.Load(),
		Overflow:   t.overflow.Load(),
	}
}

// Close 解绑地址并唤醒阻塞的 Recv
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.hub.unbind(t.local, t)
		logger.Debug("内存端点已关闭", "local", t.local)
	})
	return nil
}
