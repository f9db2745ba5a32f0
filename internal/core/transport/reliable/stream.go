package reliable

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("transport/reliable")

// 流单元类型
const (
	unitData byte = 0x00
	unitFin  byte = 0x01
)

// finTimeout Close 时发送 FIN 的等待上限
const finTimeout = 500 * time.Millisecond

// StreamOption 流选项
type StreamOption func(*Stream)

// WithOnClose 在流关闭后回调一次
func WithOnClose(fn func()) StreamOption {
	return func(s *Stream) { s.onClose = fn }
}

// Stream 可靠传输之上的字节流
//
// 单元格式 [kind:1][payload]，写入按 MaxUnitSize 分段。
// CloseWrite 发送 FIN，对端读到 io.EOF。
// 序号缺口意味着字节流已不完整，之后的读取都返回该错误。
// 写入失败（如重传预算耗尽）时整条链路作废：立即关闭可靠传输，
// 对端随之收到 transport.ErrPeerClosed，本端读写都返回该写入错误。
type Stream struct {
	transport.DataPlaneMarker

	rt     transport.ReliableTransport
	local  types.Address
	remote types.Address

	ctx    context.Context
	cancel context.CancelFunc

	wmu         sync.Mutex
	writeClosed bool
	writeErr    error

	rmu        sync.Mutex
	unit       []byte
	pending    []byte
	eof        bool
	readErr    error
	readClosed atomic.Bool

	// 写入失败后链路作废的原因
	failErr atomic.Pointer[error]

	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

var _ transport.DataChannel = (*Stream)(nil)

// NewStream 在 rt 之上创建字节流，流接管 rt 的所有权
func NewStream(rt transport.ReliableTransport, local, remote types.Address, opts ...StreamOption) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		rt:     rt,
		local:  local,
		remote: remote,
		ctx:    ctx,
		cancel: cancel,
		unit:   make([]byte, rt.MaxUnitSize()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transport 返回底层可靠传输
func (s *Stream) Transport() transport.ReliableTransport { return s.rt }

// LocalAddress 本端地址
func (s *Stream) LocalAddress() types.Address { return s.local }

// RemoteAddress 对端地址
func (s *Stream) RemoteAddress() types.Address { return s.remote }

// ============================================================================
//                              写
// ============================================================================

// Write 分段写入
func (s *Stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.writeClosed {
		return 0, transport.ErrClosed
	}
	if s.writeErr != nil {
		return 0, s.writeErr
	}

	seg := s.rt.MaxUnitSize() - 1
	frame := make([]byte, 0, s.rt.MaxUnitSize())
	written := 0
	for written < len(p) {
		end := written + seg
		if end > len(p) {
			end = len(p)
		}
		frame = append(frame[:0], unitData)
		frame = append(frame, p[written:end]...)
		if _, err := s.rt.Send(s.ctx, frame); err != nil {
			s.writeErr = s.mapErr(err)
			s.abort(s.writeErr)
			return written, s.writeErr
		}
		written = end
	}
	return written, nil
}

// CloseWrite 发送 FIN
func (s *Stream) CloseWrite() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.writeClosed {
		return nil
	}
	s.writeClosed = true
	if s.writeErr != nil {
		return nil
	}
	if _, err := s.rt.Send(s.ctx, []byte{unitFin}); err != nil {
		s.writeErr = s.mapErr(err)
		s.abort(s.writeErr)
		return s.writeErr
	}
	return nil
}

// abort 写入失败后关闭可靠传输，使对端的读取以错误结束而不是一直等待 FIN
func (s *Stream) abort(err error) {
	if errors.Is(err, transport.ErrClosed) {
		return
	}
	if !s.failErr.CompareAndSwap(nil, &err) {
		return
	}
	logger.Debug("写入失败，放弃链路", "remote", s.remote, "error", err)
	if cerr := s.rt.Close(); cerr != nil && !errors.Is(cerr, transport.ErrClosed) {
		logger.Debug("关闭可靠传输失败", "remote", s.remote, "error", cerr)
	}
}

// ============================================================================
//                              读
// ============================================================================

// Read 读取字节流
func (s *Stream) Read(p []byte) (int, error) {
	if s.readClosed.Load() {
		return 0, transport.ErrClosed
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return s.readLocked(p)
}

// readLocked 调用方持有 rmu
func (s *Stream) readLocked(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		if s.readErr != nil {
			return 0, s.readErr
		}
		n, err := s.rt.Recv(s.ctx, s.unit)
		if err != nil {
			s.readErr = s.mapErr(err)
			var gap *transport.GapError
			if errors.As(err, &gap) {
				logger.Warn("字节流出现缺口", "remote", s.remote, "missing", gap.Missing())
			}
			return 0, s.readErr
		}
		if n == 0 {
			continue
		}
		switch s.unit[0] {
		case unitData:
			s.pending = s.unit[1:n]
		case unitFin:
			s.eof = true
		default:
			logger.Debug("丢弃未知类型的流单元", "kind", s.unit[0])
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// CloseRead 关闭读端，后台丢弃对端后续数据直到 FIN
func (s *Stream) CloseRead() error {
	if !s.readClosed.CompareAndSwap(false, true) {
		return nil
	}
	go s.drain()
	return nil
}

func (s *Stream) drain() {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	s.pending = nil
	scratch := make([]byte, 4096)
	for {
		if _, err := s.readLocked(scratch); err != nil {
			return
		}
	}
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭两端并释放可靠传输
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		// 写入进行中时不等待，直接放弃 FIN
		if s.wmu.TryLock() {
			if !s.writeClosed && s.writeErr == nil {
				ctx, cancel := context.WithTimeout(s.ctx, finTimeout)
				if _, err := s.rt.Send(ctx, []byte{unitFin}); err != nil {
					logger.Debug("发送 FIN 失败", "remote", s.remote, "error", err)
				}
				cancel()
			}
			s.writeClosed = true
			s.wmu.Unlock()
		}
		s.readClosed.Store(true)
		s.cancel()
		s.closeErr = s.rt.Close()
		if errors.Is(s.closeErr, transport.ErrClosed) {
			s.closeErr = nil
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

func (s *Stream) mapErr(err error) error {
	if p := s.failErr.Load(); p != nil {
		return *p
	}
	if s.ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
		return transport.ErrClosed
	}
	return err
}
