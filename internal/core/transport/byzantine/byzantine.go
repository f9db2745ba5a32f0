// Package byzantine 实现确认 / 否认 / 重传层
//
// 帧格式：
//
//	[type:1][id:uvarint][payload]
//
//	type 0x01 数据   0x02 确认   0x03 否认   0x04 保活   0x05 关闭
//
// 发送采用停等协议：每个数据单元在重传预算内等待对端确认。
// 预算以尝试次数计（首发 + MaxRetries 次重传），每次尝试的等待时间从
// RetryTimeout 开始翻倍，上限 MaxRetryTimeout。预算耗尽返回
// transport.ErrRetryExhausted。
//
// 接收侧在下层报告损坏（transport.ErrCorrupted）时发送否认，促使对端
// 立即重传，而不是等待超时。数据单元仅在成功放入接收队列后才确认；
// 队列已满时不确认，由对端重传实现背压。
//
// 链路存活：空闲期限（IdleTimeout）内没有任何帧到达时终止并报告
// transport.ErrPeerSilent；期间每四分之一期限发送一次保活帧。
// Close 尽力向对端发送关闭帧，对端收到后终止并报告 transport.ErrPeerClosed，
// 已确认的单元仍先交付。
package byzantine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
)

var logger = log.Logger("transport/byzantine")

// 帧类型
const (
	frameData      byte = 0x01
	frameAck       byte = 0x02
	frameNack      byte = 0x03
	frameKeepalive byte = 0x04
	frameClose     byte = 0x05
)

// 关闭帧的发送份数与等待上限
const (
	closeCopies  = 2
	closeTimeout = 100 * time.Millisecond
)

// minIdleTimeout 推导出的空闲期限下限
const minIdleTimeout = 2 * time.Second

// headerSize 最长帧头
const headerSize = 1 + varint.MaxLenUvarint63

// Config 确认层配置
type Config struct {
	// MaxRetries 首发之外的最大重传次数
	MaxRetries int
	// RetryTimeout 首次等待确认的时间
	RetryTimeout time.Duration
	// MaxRetryTimeout 单次等待上限
	MaxRetryTimeout time.Duration
	// InboxSize 接收队列长度（单元数）
	InboxSize int
	// IdleTimeout 对端静默上限；0 表示按 (MaxRetries+1)*MaxRetryTimeout 推导，
	// 负数表示不检测
	IdleTimeout time.Duration
	// Clock 时钟，测试中可替换为 clock.NewMock()
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxRetries:      8,
		RetryTimeout:    200 * time.Millisecond,
		MaxRetryTimeout: 2 * time.Second,
		InboxSize:       256,
		Clock:           clock.New(),
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryTimeout <= 0 {
		c.RetryTimeout = def.RetryTimeout
	}
	if c.MaxRetryTimeout < c.RetryTimeout {
		c.MaxRetryTimeout = c.RetryTimeout
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
	if c.Clock == nil {
		c.Clock = def.Clock
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = time.Duration(c.MaxRetries+1) * c.MaxRetryTimeout
		if c.IdleTimeout < minIdleTimeout {
			c.IdleTimeout = minIdleTimeout
		}
	}
}

// Transport 确认层
type Transport struct {
	lower transport.LossyTransport
	cfg   Config

	ctx       context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
	aliveDone chan struct{}
	termErr   atomic.Pointer[error]
	closeOnce sync.Once
	closeErr  error

	// 最近一次收到帧的时间（UnixNano）
	lastSeen atomic.Int64

	sendMu sync.Mutex
	nextID uint64

	acks  chan uint64
	nacks chan struct{}
	inbox chan []byte

	// 仅由 readLoop 访问
	lastID uint64

	sent, retransmits, acked, nacked, exhausted, duplicates atomic.Uint64
}

var _ transport.ByzantineTransport = (*Transport)(nil)

// New 在 lower 之上构造确认层并启动接收循环
func New(lower transport.LossyTransport, cfg Config) (*Transport, error) {
	if lower == nil {
		return nil, &transport.InitError{Transport: "byzantine", Err: errors.New("nil lower transport")}
	}
	if lower.MaxUnitSize() <= headerSize {
		return nil, &transport.InitError{Transport: "byzantine", Err: transport.ErrUnitTooLarge}
	}
	cfg.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		lower:     lower,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
		aliveDone: make(chan struct{}),
		acks:      make(chan uint64, 16),
		nacks:     make(chan struct{}, 1),
		inbox:     make(chan []byte, cfg.InboxSize),
	}
	t.touch()
	go t.readLoop()
	if cfg.IdleTimeout > 0 {
		go t.keepaliveLoop()
	} else {
		close(t.aliveDone)
	}
	return t, nil
}

// Lower 返回下层传输
func (t *Transport) Lower() transport.LossyTransport { return t.lower }

// MaxUnitSize 下层上限减去帧头
func (t *Transport) MaxUnitSize() int {
	return t.lower.MaxUnitSize() - headerSize
}

// ============================================================================
//                              发送
// ============================================================================

// Send 发送一个单元并等待确认
func (t *Transport) Send(ctx context.Context, p []byte) (int, error) {
	if len(p) > t.MaxUnitSize() {
		return 0, &transport.TransportError{Op: "send", Err: transport.ErrUnitTooLarge}
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if err := t.closedErr(); err != nil {
		return 0, &transport.TransportError{Op: "send", Err: err}
	}

	t.nextID++
	id := t.nextID
	frame := encodeFrame(frameData, id, p)
	t.drainControl()

	timeout := t.cfg.RetryTimeout
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt == 0 {
			t.sent.Add(1)
		} else {
			t.retransmits.Add(1)
		}
		if _, err := t.lower.Send(ctx, frame); err != nil {
			return 0, err
		}

		acked, timedOut, err := t.waitAck(ctx, id, timeout)
		if err != nil {
			return 0, &transport.TransportError{Op: "send", Err: err}
		}
		if acked {
			t.acked.Add(1)
			return len(p), nil
		}
		if timedOut {
			timeout *= 2
			if timeout > t.cfg.MaxRetryTimeout {
				timeout = t.cfg.MaxRetryTimeout
			}
		}
	}

	t.exhausted.Add(1)
	logger.Debug("重传预算耗尽", "id", id, "attempts", t.cfg.MaxRetries+1)
	return 0, &transport.TransportError{Op: "send", Err: transport.ErrRetryExhausted}
}

// waitAck 等待指定 id 的确认
//
// 返回 acked=true 表示已确认；timedOut=true 表示超时；
// 两者都为 false 表示收到否认，应立即重传。
func (t *Transport) waitAck(ctx context.Context, id uint64, timeout time.Duration) (acked, timedOut bool, err error) {
	timer := t.cfg.Clock.Timer(timeout)
	defer timer.Stop()

	for {
		select {
		case got := <-t.acks:
			if got == id {
				return true, false, nil
			}
			// 旧确认，继续等待
		case <-t.nacks:
			t.nacked.Add(1)
			return false, false, nil
		case <-timer.C:
			return false, true, nil
		case <-ctx.Done():
			return false, false, ctx.Err()
		case <-t.ctx.Done():
			return false, false, t.closedErr()
		}
	}
}

// drainControl 丢弃上一次发送遗留的确认与否认
func (t *Transport) drainControl() {
	for {
		select {
		case <-t.acks:
		case <-t.nacks:
		default:
			return
		}
	}
}

// ============================================================================
//                              接收
// ============================================================================

// Recv 接收一个已确认的单元
func (t *Transport) Recv(ctx context.Context, p []byte) (int, error) {
	select {
	case u := <-t.inbox:
		return deliver(p, u)
	default:
	}

	select {
	case u := <-t.inbox:
		return deliver(p, u)
	case <-ctx.Done():
		return 0, &transport.TransportError{Op: "recv", Err: ctx.Err()}
	case <-t.ctx.Done():
		// 终止前已确认的单元仍然交付
		select {
		case u := <-t.inbox:
			return deliver(p, u)
		default:
		}
		return 0, &transport.TransportError{Op: "recv", Err: t.closedErr()}
	}
}

func deliver(p, u []byte) (int, error) {
	if len(u) > len(p) {
		return 0, &transport.TransportError{Op: "recv", Err: errShortBuffer}
	}
	return copy(p, u), nil
}

func (t *Transport) readLoop() {
	defer close(t.loopDone)

	buf := make([]byte, t.lower.MaxUnitSize())
	for {
		n, err := t.lower.Recv(t.ctx, buf)
		if err != nil {
			if errors.Is(err, transport.ErrCorrupted) {
				// 损坏的帧也说明对端仍在发送
				t.touch()
				t.sendControl(frameNack, 0)
				continue
			}
			if t.ctx.Err() == nil {
				logger.Debug("下层接收失败，确认层终止", "error", err)
				t.terminate(err)
			}
			return
		}

		t.touch()
		kind, id, payload, ok := decodeFrame(buf[:n])
		if !ok {
			continue
		}
		switch kind {
		case frameAck:
			select {
			case t.acks <- id:
			default:
			}
		case frameNack:
			select {
			case t.nacks <- struct{}{}:
			default:
			}
		case frameData:
			t.handleData(id, payload)
		case frameKeepalive:
		case frameClose:
			logger.Debug("对端关闭链路")
			t.terminate(transport.ErrPeerClosed)
			return
		}
	}
}

func (t *Transport) handleData(id uint64, payload []byte) {
	if id <= t.lastID {
		// 对端没收到确认，重发确认
		t.duplicates.Add(1)
		t.sendControl(frameAck, id)
		return
	}
	u := append([]byte(nil), payload...)
	select {
	case t.inbox <- u:
		t.lastID = id
		t.sendControl(frameAck, id)
	default:
		// 队列已满，不确认
	}
}

func (t *Transport) sendControl(kind byte, id uint64) {
	if _, err := t.lower.Send(t.ctx, encodeFrame(kind, id, nil)); err != nil {
		logger.Debug("控制帧发送失败", "kind", kind, "error", err)
	}
}

// ============================================================================
//                              存活检测
// ============================================================================

func (t *Transport) touch() {
	t.lastSeen.Store(t.cfg.Clock.Now().UnixNano())
}

// keepaliveLoop 周期性发送保活帧，并在对端静默超过 IdleTimeout 时终止
func (t *Transport) keepaliveLoop() {
	defer close(t.aliveDone)

	interval := t.cfg.IdleTimeout / 4
	if interval <= 0 {
		interval = t.cfg.IdleTimeout
	}
	ticker := t.cfg.Clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			idle := t.cfg.Clock.Since(time.Unix(0, t.lastSeen.Load()))
			if idle >= t.cfg.IdleTimeout {
				logger.Debug("对端静默超时，确认层终止", "idle", idle)
				t.terminate(transport.ErrPeerSilent)
				return
			}
			t.sendControl(frameKeepalive, 0)
		case <-t.ctx.Done():
			return
		}
	}
}

// ============================================================================
//                              关闭与统计
// ============================================================================

func (t *Transport) terminate(err error) {
	t.termErr.CompareAndSwap(nil, &err)
	t.cancel()
}

func (t *Transport) closedErr() error {
	if t.ctx.Err() == nil {
		return nil
	}
	if p := t.termErr.Load(); p != nil {
		return *p
	}
	return transport.ErrClosed
}

// RetryStats 返回统计快照
func (t *Transport) RetryStats() transport.RetryStats {
	return transport.RetryStats{
		Sent:        t.sent.Load(),
		Retransmits: t.retransmits.Load(),
		Acked:       t.acked.Load(),
		Nacked:      t.nacked.Load(),
		Exhausted:   t.exhausted.Load(),
		Duplicates:  t.duplicates.Load(),
	}
}

// Close 通知对端、停止后台循环并关闭下层
//
// 关闭帧不等待确认，丢失时由对端的空闲期限兜底。
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.ctx.Err() == nil {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			frame := encodeFrame(frameClose, 0, nil)
			for i := 0; i < closeCopies; i++ {
				if _, err := t.lower.Send(ctx, frame); err != nil {
					logger.Debug("关闭帧发送失败", "error", err)
					break
				}
			}
			cancel()
		}
		t.cancel()
		err := t.lower.Close()
		<-t.loopDone
		<-t.aliveDone
		if errors.Is(err, transport.ErrClosed) {
			err = nil
		}
		t.closeErr = err
	})
	return t.closeErr
}
