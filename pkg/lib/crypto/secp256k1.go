package crypto

import (
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/minio/sha256-simd"
)

// Secp256k1 密钥常量
const (
	// Secp256k1PrivateKeySize 私钥大小（32 字节）
	Secp256k1PrivateKeySize = 32
	// Secp256k1PublicKeySize 压缩公钥大小（33 字节）
	Secp256k1PublicKeySize = 33
)

// ============================================================================
//                              Secp256k1PublicKey
// ============================================================================

// Secp256k1PublicKey Secp256k1 公钥
type Secp256k1PublicKey struct {
	k *secp256k1.PublicKey
}

// Raw 返回压缩格式的公钥字节（33 字节）
func (k *Secp256k1PublicKey) Raw() ([]byte, error) {
	return k.k.SerializeCompressed(), nil
}

// Type 返回密钥类型
func (k *Secp256k1PublicKey) Type() KeyType {
	return KeyTypeSecp256k1
}

// Equals 比较两个公钥是否相等
func (k *Secp256k1PublicKey) Equals(other Key) bool {
	sk, ok := other.(*Secp256k1PublicKey)
	if !ok {
		return KeyEqual(k, other)
	}
	return k.k.IsEqual(sk.k)
}

// Verify 验证 DER 编码的签名，消息先做 SHA-256
func (k *Secp256k1PublicKey) Verify(data, sig []byte) (bool, error) {
	s, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, nil
	}
	hash := sha256.Sum256(data)
	return s.Verify(hash[:], k.k), nil
}

// Bytes 返回序列化形式
func (k *Secp256k1PublicKey) Bytes() []byte {
	return marshalPublicKey(k)
}

// String 返回 Base58 文本形式
func (k *Secp256k1PublicKey) String() string {
	return publicKeyString(k)
}

// MarshalText 实现 encoding.TextMarshaler
func (k *Secp256k1PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MarshalBinary 实现 encoding.BinaryMarshaler
func (k *Secp256k1PublicKey) MarshalBinary() ([]byte, error) {
	return k.Bytes(), nil
}

// UnmarshalSecp256k1PublicKey 解析压缩或未压缩格式的公钥
func UnmarshalSecp256k1PublicKey(data []byte) (PublicKey, error) {
	k, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return &Secp256k1PublicKey{k: k}, nil
}

// ============================================================================
//                              Secp256k1PrivateKey
// ============================================================================

// Secp256k1PrivateKey Secp256k1 私钥
type Secp256k1PrivateKey struct {
	privateKeyNoExport
	k *secp256k1.PrivateKey
}

// GenerateSecp256k1Key 生成 Secp256k1 密钥对
func GenerateSecp256k1Key(reader io.Reader) (PrivateKey, PublicKey, error) {
	priv, err := secp256k1.GeneratePrivateKeyFromRand(reader)
	if err != nil {
		return nil, nil, err
	}
	k := &Secp256k1PrivateKey{k: priv}
	return k, k.GetPublic(), nil
}

// Secp256k1KeyFromBytes 从 32 字节标量构造私钥
func Secp256k1KeyFromBytes(data []byte) (PrivateKey, error) {
	if len(data) != Secp256k1PrivateKeySize {
		return nil, fmt.Errorf("%w: secp256k1 length %d", ErrInvalidPrivateKey, len(data))
	}
	priv := secp256k1.PrivKeyFromBytes(data)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidPrivateKey)
	}
	return &Secp256k1PrivateKey{k: priv}, nil
}

// Raw 返回 32 字节私钥（仅进程内使用）
func (k *Secp256k1PrivateKey) Raw() ([]byte, error) {
	return k.k.Serialize(), nil
}

// Type 返回密钥类型
func (k *Secp256k1PrivateKey) Type() KeyType {
	return KeyTypeSecp256k1
}

// Equals 比较两个私钥是否相等
func (k *Secp256k1PrivateKey) Equals(other Key) bool {
	return KeyEqual(k, other)
}

// Sign 对 SHA-256(data) 签名，返回 DER 编码
func (k *Secp256k1PrivateKey) Sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	return ecdsa.Sign(k.k, hash[:]).Serialize(), nil
}

// GetPublic 返回对应公钥
func (k *Secp256k1PrivateKey) GetPublic() PublicKey {
	return &Secp256k1PublicKey{k: k.k.PubKey()}
}

// String 脱敏输出
func (k *Secp256k1PrivateKey) String() string {
	return redacted(KeyTypeSecp256k1)
}

// GoString 脱敏输出，覆盖 %#v
func (k *Secp256k1PrivateKey) GoString() string {
	return redacted(KeyTypeSecp256k1)
}
