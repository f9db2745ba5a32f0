package noise

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/flynn/noise"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/sha256-simd"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var logger = log.Logger("core/security/noise")

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// DefaultResumeCacheSize 默认恢复缓存容量
const DefaultResumeCacheSize = 1024

// Config 握手器配置
type Config struct {
	// ResumeCacheSize 响应方保存恢复状态的对端数量
	ResumeCacheSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{ResumeCacheSize: DefaultResumeCacheSize}
}

// Handshaker Noise XX 握手器
type Handshaker struct {
	priv      crypto.PrivateKey
	identity  []byte
	static    noise.DHKey
	staticSig []byte

	resume *lru.Cache[types.NodeID, resumeState]
}

var _ security.Handshaker = (*Handshaker)(nil)

// New 创建握手器并生成静态 DH 密钥
func New(priv crypto.PrivateKey, cfg Config) (*Handshaker, error) {
	if priv == nil {
		return nil, crypto.ErrNilPrivateKey
	}
	if cfg.ResumeCacheSize <= 0 {
		cfg.ResumeCacheSize = DefaultResumeCacheSize
	}

	identity, err := crypto.MarshalPublicKey(priv.GetPublic())
	if err != nil {
		return nil, fmt.Errorf("marshal identity key: %w", err)
	}
	static, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate static key: %w", err)
	}
	sig, err := priv.Sign(append([]byte(staticKeyPrefix), static.Public...))
	if err != nil {
		return nil, fmt.Errorf("sign static key: %w", err)
	}
	cache, err := lru.New[types.NodeID, resumeState](cfg.ResumeCacheSize)
	if err != nil {
		return nil, err
	}

	return &Handshaker{
		priv:      priv,
		identity:  identity,
		static:    static,
		staticSig: sig,
		resume:    cache,
	}, nil
}

// Factory 返回按身份私钥构造握手器的工厂
func Factory(cfg Config) security.HandshakerFactory {
	return func(priv crypto.PrivateKey) (security.Handshaker, error) {
		return New(priv, cfg)
	}
}

// ============================================================================
//                              握手入口
// ============================================================================

// SecureOutbound 作为发起方握手
func (h *Handshaker) SecureOutbound(ctx context.Context, ch security.Channel, remotePub crypto.PublicKey, state types.PersistentState) (security.SecureSession, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", security.ErrHandshakeFailed)
	}
	prev, err := decodeState(state)
	if err != nil {
		logger.Warn("忽略无法解析的恢复状态", "error", err)
		prev = resumeState{}
	}

	return h.guard(ctx, ch, func() (*session, error) {
		return h.runOutbound(ch, remotePub, prev)
	})
}

// SecureInbound 作为响应方握手
func (h *Handshaker) SecureInbound(ctx context.Context, ch security.Channel) (security.SecureSession, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", security.ErrHandshakeFailed)
	}
	return h.guard(ctx, ch, func() (*session, error) {
		return h.runInbound(ch)
	})
}

// guard ctx 结束时关闭通道以中止阻塞的握手
func (h *Handshaker) guard(ctx context.Context, ch security.Channel, run func() (*session, error)) (security.SecureSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", security.ErrHandshakeFailed, err)
	}
	stop := context.AfterFunc(ctx, func() { ch.Close() })

	s, err := run()
	if !stop() {
		// ctx 已触发，通道已关闭
		return nil, fmt.Errorf("%w: %w", security.ErrHandshakeFailed, ctx.Err())
	}
	if err != nil {
		logger.Debug("握手失败", "error", err)
		return nil, fmt.Errorf("%w: %w", security.ErrHandshakeFailed, err)
	}
	return s, nil
}

func (h *Handshaker) newState(initiator bool) (*noise.HandshakeState, error) {
	return noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		Prologue:      []byte(prologue),
		StaticKeypair: h.static,
	})
}

func (h *Handshaker) localPayload(epoch uint64, claim []byte) []byte {
	return payload{identityKey: h.identity, identitySig: h.staticSig, epoch: epoch, claim: claim}.marshal()
}

// ============================================================================
//                              发起方
// ============================================================================

func (h *Handshaker) runOutbound(ch security.Channel, expected crypto.PublicKey, prev resumeState) (*session, error) {
	hs, err := h.newState(true)
	if err != nil {
		return nil, err
	}

	// -> e
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(ch, msg1); err != nil {
		return nil, fmt.Errorf("send message 1: %w", err)
	}

	// <- e, ee, s, es, payload
	msg2, err := readHandshakeFrame(ch)
	if err != nil {
		return nil, fmt.Errorf("receive message 2: %w", err)
	}
	raw, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, fmt.Errorf("read message 2: %w", err)
	}
	remote, _, err := verifyPayload(raw, hs.PeerStatic())
	if err != nil {
		return nil, err
	}
	if expected != nil && !remote.Equals(expected) {
		return nil, security.ErrPeerKeyMismatch
	}

	// -> s, se, payload
	var (
		epoch uint64
		claim []byte
	)
	if prev.valid() {
		epoch, claim = prev.epoch, claimCheck(prev.secret)
	}
	msg3, cs1, cs2, err := hs.WriteMessage(nil, h.localPayload(epoch, claim))
	if err != nil {
		return nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(ch, msg3); err != nil {
		return nil, fmt.Errorf("send message 3: %w", err)
	}
	s := &session{ch: ch, sendCS: cs1, recvCS: cs2, remotePub: remote}

	// <- resume
	ct, err := readHandshakeFrame(ch)
	if err != nil {
		return nil, fmt.Errorf("receive resume: %w", err)
	}
	plain, err := s.recvCS.Decrypt(nil, nil, ct)
	if err != nil {
		return nil, fmt.Errorf("decrypt resume: %w", err)
	}
	got, check, err := unmarshalResume(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	resumed := prev.valid() && got == prev.epoch+1
	if !resumed && got != 1 {
		return nil, fmt.Errorf("%w: %d", ErrResumeMismatch, got)
	}
	next, err := ratchet(prev, resumed, hs.ChannelBinding())
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(check, secretCheck(next.secret)) != 1 {
		return nil, fmt.Errorf("%w: secret check failed", ErrResumeMismatch)
	}
	s.state = next.encode()

	logger.Debug("出站握手完成", "epoch", next.epoch, "resumed", resumed)
	return s, nil
}

// ============================================================================
//                              响应方
// ============================================================================

func (h *Handshaker) runInbound(ch security.Channel) (*session, error) {
	hs, err := h.newState(false)
	if err != nil {
		return nil, err
	}

	// <- e
	msg1, err := readHandshakeFrame(ch)
	if err != nil {
		return nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, fmt.Errorf("read message 1: %w", err)
	}

	// -> e, ee, s, es, payload
	msg2, _, _, err := hs.WriteMessage(nil, h.localPayload(0, nil))
	if err != nil {
		return nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(ch, msg2); err != nil {
		return nil, fmt.Errorf("send message 2: %w", err)
	}

	// <- s, se, payload
	msg3, err := readHandshakeFrame(ch)
	if err != nil {
		return nil, fmt.Errorf("receive message 3: %w", err)
	}
	raw, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, fmt.Errorf("read message 3: %w", err)
	}
	remote, pl, err := verifyPayload(raw, hs.PeerStatic())
	if err != nil {
		return nil, err
	}
	remoteID, err := crypto.NodeIDFromPublicKey(remote)
	if err != nil {
		return nil, err
	}

	// 纪元相同但秘密不同时（任一方状态损坏或丢失后重建）回退到纪元 1
	prev, ok := h.resume.Get(remoteID)
	resumed := ok && prev.valid() && pl.epoch == prev.epoch &&
		subtle.ConstantTimeCompare(pl.claim, claimCheck(prev.secret)) == 1
	if ok && prev.valid() && pl.epoch == prev.epoch && !resumed {
		logger.Debug("恢复秘密不一致，从纪元 1 重新开始", "remote", log.TruncateID(remoteID.String(), 8), "epoch", pl.epoch)
	}
	next, err := ratchet(prev, resumed, hs.ChannelBinding())
	if err != nil {
		return nil, err
	}

	// cs1 = 发起方到响应方，cs2 = 响应方到发起方
	s := &session{ch: ch, sendCS: cs2, recvCS: cs1, remotePub: remote}

	// -> resume
	ct, err := s.sendCS.Encrypt(nil, nil, marshalResume(next.epoch, secretCheck(next.secret)))
	if err != nil {
		return nil, fmt.Errorf("encrypt resume: %w", err)
	}
	if err := writeFrame(ch, ct); err != nil {
		return nil, fmt.Errorf("send resume: %w", err)
	}

	h.resume.Add(remoteID, next)
	s.state = next.encode()

	logger.Debug("入站握手完成", "remote", log.TruncateID(remoteID.String(), 8), "epoch", next.epoch, "resumed", resumed)
	return s, nil
}

// ============================================================================
//                              辅助函数
// ============================================================================

// verifyPayload 校验对端 payload 并返回身份公钥
func verifyPayload(raw, remoteStatic []byte) (crypto.PublicKey, payload, error) {
	if len(remoteStatic) != noise.DH25519.DHLen() {
		return nil, payload{}, fmt.Errorf("invalid remote static key length: %d", len(remoteStatic))
	}
	pl, err := unmarshalPayload(raw)
	if err != nil {
		return nil, payload{}, err
	}
	pub, err := crypto.UnmarshalPublicKeyBytes(pl.identityKey)
	if err != nil {
		return nil, payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	ok, err := pub.Verify(append([]byte(staticKeyPrefix), remoteStatic...), pl.identitySig)
	if err != nil {
		return nil, payload{}, fmt.Errorf("%w: %w", security.ErrInvalidSignature, err)
	}
	if !ok {
		return nil, payload{}, security.ErrInvalidSignature
	}
	return pub, pl, nil
}

// secretCheck 秘密的短校验值
func secretCheck(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:resumeCheckSize]
}

// claimCheck 发起方声明所持秘密的校验值，与 secretCheck 域分离
func claimCheck(secret []byte) []byte {
	sum := sha256.Sum256(append([]byte(claimPrefix), secret...))
	return sum[:resumeCheckSize]
}
