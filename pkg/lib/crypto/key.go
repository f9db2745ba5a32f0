package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"
)

// ============================================================================
//                              密钥类型定义
// ============================================================================

// KeyType 密钥类型
type KeyType uint8

const (
	// KeyTypeUnspecified 未指定密钥类型
	KeyTypeUnspecified KeyType = 0
	// KeyTypeEd25519 Ed25519 密钥（默认）
	KeyTypeEd25519 KeyType = 2
	// KeyTypeSecp256k1 Secp256k1 密钥
	KeyTypeSecp256k1 KeyType = 3
)

// String 返回密钥类型名称
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeEd25519:
		return "Ed25519"
	case KeyTypeSecp256k1:
		return "Secp256k1"
	case KeyTypeUnspecified:
		return "Unspecified"
	default:
		return "Unknown"
	}
}

// ParseKeyType 解析密钥类型名称（不区分大小写）
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(s) {
	case "ed25519", "":
		return KeyTypeEd25519, nil
	case "secp256k1":
		return KeyTypeSecp256k1, nil
	}
	return KeyTypeUnspecified, fmt.Errorf("%w: %q", ErrBadKeyType, s)
}

// ============================================================================
//                              密钥接口定义
// ============================================================================

// Key 基础密钥接口
type Key interface {
	// Raw 返回原始密钥字节
	Raw() ([]byte, error)

	// Type 返回密钥类型
	Type() KeyType

	// Equals 比较两个密钥是否相等
	Equals(Key) bool
}

// PublicKey 节点公钥
//
// 可比较、可序列化、可打印。
type PublicKey interface {
	Key
	fmt.Stringer

	// Verify 使用此公钥验证签名
	Verify(data, sig []byte) (bool, error)

	// Bytes 返回带类型前缀的序列化形式，见 MarshalPublicKey
	Bytes() []byte
}

// PrivateKey 节点私钥
//
// 不可序列化；String 与 GoString 输出脱敏信息。
type PrivateKey interface {
	Key
	fmt.Stringer
	fmt.GoStringer

	// Sign 使用此私钥签名数据
	Sign(data []byte) ([]byte, error)

	// GetPublic 返回对应的公钥
	GetPublic() PublicKey
}

// ============================================================================
//                              密钥工厂函数
// ============================================================================

// GenerateKeyPair 使用系统随机源生成密钥对
func GenerateKeyPair(keyType KeyType) (PrivateKey, PublicKey, error) {
	return GenerateKeyPairWithReader(keyType, rand.Reader)
}

// GenerateKeyPairWithReader 使用指定的随机源生成密钥对
func GenerateKeyPairWithReader(keyType KeyType, reader io.Reader) (PrivateKey, PublicKey, error) {
	switch keyType {
	case KeyTypeEd25519:
		return GenerateEd25519Key(reader)
	case KeyTypeSecp256k1:
		return GenerateSecp256k1Key(reader)
	default:
		return nil, nil, ErrBadKeyType
	}
}

// pubKeyUnmarshallers 公钥反序列化函数映射
var pubKeyUnmarshallers = map[KeyType]func([]byte) (PublicKey, error){
	KeyTypeEd25519:   UnmarshalEd25519PublicKey,
	KeyTypeSecp256k1: UnmarshalSecp256k1PublicKey,
}

// UnmarshalPublicKey 从原始字节反序列化公钥
func UnmarshalPublicKey(keyType KeyType, data []byte) (PublicKey, error) {
	um, ok := pubKeyUnmarshallers[keyType]
	if !ok {
		return nil, ErrBadKeyType
	}
	return um(data)
}

// ============================================================================
//                              辅助函数
// ============================================================================

// KeyEqual 使用常量时间比较两个密钥是否相等
func KeyEqual(k1, k2 Key) bool {
	if k1 == nil || k2 == nil {
		return k1 == k2
	}
	if k1.Type() != k2.Type() {
		return false
	}

	b1, err1 := k1.Raw()
	b2, err2 := k2.Raw()
	if err1 != nil || err2 != nil {
		return false
	}
	return subtle.ConstantTimeCompare(b1, b2) == 1
}

// CheckKeyPair 检查私钥与公钥是否匹配
func CheckKeyPair(priv PrivateKey, pub PublicKey) bool {
	if priv == nil || pub == nil {
		return false
	}
	return priv.GetPublic().Equals(pub)
}

// redacted 私钥脱敏输出
func redacted(kt KeyType) string {
	return fmt.Sprintf("%s{PrivateKey:REDACTED}", kt)
}

// privateKeyNoExport 嵌入到私钥实现中，拒绝文本/JSON 导出
type privateKeyNoExport struct{}

func (privateKeyNoExport) MarshalText() ([]byte, error) { return nil, ErrPrivateKeyExport }
func (privateKeyNoExport) MarshalJSON() ([]byte, error) { return nil, ErrPrivateKeyExport }
