package noise

import (
	"fmt"
	"io"
	"sync"

	"github.com/flynn/noise"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// ============================================================================
//                              加密会话
// ============================================================================

// session Noise 加密会话
//
// 读写各自持锁，两个方向互不阻塞。
//
// 写方向的结束标记是一个加密的空明文帧（只含认证标签）。只有解密成功的
// 空明文才被当作 io.EOF；明文空帧或底层在标记之前结束都视为截断。
type session struct {
	ch security.Channel

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	remotePub crypto.PublicKey
	state     types.PersistentState

	readMu  sync.Mutex
	readBuf []byte
	eof     bool

	writeMu     sync.Mutex
	writeClosed bool
}

var _ security.SecureSession = (*session)(nil)

// Read 读取并解密
func (s *session) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for len(s.readBuf) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		ct, err := readFrame(s.ch)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if ct == nil {
			return 0, ErrUnauthenticatedClose
		}
		plain, err := s.recvCS.Decrypt(nil, nil, ct)
		if err != nil {
			return 0, fmt.Errorf("noise: decrypt: %w", err)
		}
		if len(plain) == 0 {
			s.eof = true
			return 0, io.EOF
		}
		s.readBuf = plain
	}

	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

// Write 加密并写入，超过单帧上限时分段
func (s *session) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeClosed {
		return 0, io.ErrClosedPipe
	}

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}
		ct, err := s.sendCS.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("noise: encrypt: %w", err)
		}
		if err := writeFrame(s.ch, ct); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// CloseWrite 发送加密的结束标记并关闭底层写方向
func (s *session) CloseWrite() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeClosed {
		return nil
	}
	s.writeClosed = true
	ct, err := s.sendCS.Encrypt(nil, nil, nil)
	if err != nil {
		return fmt.Errorf("noise: encrypt: %w", err)
	}
	if err := writeFrame(s.ch, ct); err != nil {
		return err
	}
	return s.ch.CloseWrite()
}

// CloseRead 关闭读方向
func (s *session) CloseRead() error {
	return s.ch.CloseRead()
}

// Close 关闭底层通道
func (s *session) Close() error {
	return s.ch.Close()
}

// RemotePublicKey 对端身份公钥
func (s *session) RemotePublicKey() crypto.PublicKey {
	return s.remotePub
}

// PersistentState 更新后的恢复状态
func (s *session) PersistentState() types.PersistentState {
	return s.state.Clone()
}
