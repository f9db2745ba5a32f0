package network

import (
	"sync"

	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// ============================================================================
//                              读写半部
// ============================================================================

// shared 两个半部共享的会话，两者都关闭后释放
type shared struct {
	sess security.SecureSession

	mu         sync.Mutex
	open       int
	released   bool
	releaseErr error
}

// release 一个半部关闭；最后一个关闭时释放会话
func (s *shared) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open--
	if s.open > 0 || s.released {
		return nil
	}
	s.released = true
	s.releaseErr = s.sess.Close()
	return s.releaseErr
}

type readHalf struct {
	s    *shared
	once sync.Once
	err  error
}

func (r *readHalf) Read(p []byte) (int, error) {
	return r.s.sess.Read(p)
}

// Close 关闭读方向
func (r *readHalf) Close() error {
	r.once.Do(func() {
		r.err = r.s.sess.CloseRead()
		if err := r.s.release(); r.err == nil {
			r.err = err
		}
	})
	return r.err
}

type writeHalf struct {
	s    *shared
	once sync.Once
	err  error
}

func (w *writeHalf) Write(p []byte) (int, error) {
	return w.s.sess.Write(p)
}

// Close 关闭写方向，对端读到 io.EOF
func (w *writeHalf) Close() error {
	w.once.Do(func() {
		w.err = w.s.sess.CloseWrite()
		if err := w.s.release(); w.err == nil {
			w.err = err
		}
	})
	return w.err
}

func newConnection(addr types.Address, sess security.SecureSession) *netif.Connection {
	s := &shared{sess: sess, open: 2}
	return &netif.Connection{
		NetAddress:      addr,
		RemotePubKey:    sess.RemotePublicKey(),
		PersistentState: sess.PersistentState(),
		Read:            &readHalf{s: s},
		Write:           &writeHalf{s: s},
	}
}
