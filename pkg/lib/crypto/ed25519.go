package crypto

import (
	"crypto/ed25519"
	"crypto/subtle"
	"fmt"
	"io"
)

// ============================================================================
//                              Ed25519PublicKey
// ============================================================================

// Ed25519PublicKey Ed25519 公钥
type Ed25519PublicKey struct {
	k ed25519.PublicKey
}

// Raw 返回 32 字节公钥
func (k *Ed25519PublicKey) Raw() ([]byte, error) {
	out := make([]byte, len(k.k))
	copy(out, k.k)
	return out, nil
}

// Type 返回密钥类型
func (k *Ed25519PublicKey) Type() KeyType {
	return KeyTypeEd25519
}

// Equals 比较两个公钥是否相等
func (k *Ed25519PublicKey) Equals(other Key) bool {
	ek, ok := other.(*Ed25519PublicKey)
	if !ok {
		return KeyEqual(k, other)
	}
	return subtle.ConstantTimeCompare(k.k, ek.k) == 1
}

// Verify 验证签名
func (k *Ed25519PublicKey) Verify(data, sig []byte) (bool, error) {
	return ed25519.Verify(k.k, data, sig), nil
}

// Bytes 返回序列化形式
func (k *Ed25519PublicKey) Bytes() []byte {
	return marshalPublicKey(k)
}

// String 返回 Base58 文本形式
func (k *Ed25519PublicKey) String() string {
	return publicKeyString(k)
}

// MarshalText 实现 encoding.TextMarshaler
func (k *Ed25519PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MarshalBinary 实现 encoding.BinaryMarshaler
func (k *Ed25519PublicKey) MarshalBinary() ([]byte, error) {
	return k.Bytes(), nil
}

// UnmarshalEd25519PublicKey 从 32 字节原始数据解析公钥
func UnmarshalEd25519PublicKey(data []byte) (PublicKey, error) {
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 length %d", ErrInvalidPublicKey, len(data))
	}
	k := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(k, data)
	return &Ed25519PublicKey{k: k}, nil
}

// ============================================================================
//                              Ed25519PrivateKey
// ============================================================================

// Ed25519PrivateKey Ed25519 私钥
type Ed25519PrivateKey struct {
	privateKeyNoExport
	k ed25519.PrivateKey
}

// GenerateEd25519Key 生成 Ed25519 密钥对
func GenerateEd25519Key(reader io.Reader) (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(reader)
	if err != nil {
		return nil, nil, err
	}
	return &Ed25519PrivateKey{k: priv}, &Ed25519PublicKey{k: pub}, nil
}

// Ed25519KeyFromSeed 从 32 字节种子确定性地构造私钥
func Ed25519KeyFromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed length %d", ErrInvalidPrivateKey, len(seed))
	}
	return &Ed25519PrivateKey{k: ed25519.NewKeyFromSeed(seed)}, nil
}

// Raw 返回私钥字节（仅进程内使用）
func (k *Ed25519PrivateKey) Raw() ([]byte, error) {
	out := make([]byte, len(k.k))
	copy(out, k.k)
	return out, nil
}

// Type 返回密钥类型
func (k *Ed25519PrivateKey) Type() KeyType {
	return KeyTypeEd25519
}

// Equals 比较两个私钥是否相等
func (k *Ed25519PrivateKey) Equals(other Key) bool {
	return KeyEqual(k, other)
}

// Sign 签名
func (k *Ed25519PrivateKey) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(k.k, data), nil
}

// GetPublic 返回对应公钥
func (k *Ed25519PrivateKey) GetPublic() PublicKey {
	return &Ed25519PublicKey{k: k.k.Public().(ed25519.PublicKey)}
}

// String 脱敏输出
func (k *Ed25519PrivateKey) String() string {
	return redacted(KeyTypeEd25519)
}

// GoString 脱敏输出，覆盖 %#v
func (k *Ed25519PrivateKey) GoString() string {
	return redacted(KeyTypeEd25519)
}
