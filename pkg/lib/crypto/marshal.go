package crypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// 序列化格式：
//
//   ┌─────────────────────────────────────────┐
//   │  Type:   uint8 (KeyType)                │
//   │  Length: uint32 (大端序)                 │
//   │  Data:   原始公钥                        │
//   └─────────────────────────────────────────┘
//
// 私钥使用同一头部，Data 为 Ed25519 种子或 Secp256k1 标量。

const marshalHeaderSize = 5

// MarshalPublicKey 序列化公钥
func MarshalPublicKey(key PublicKey) ([]byte, error) {
	if key == nil {
		return nil, ErrNilPublicKey
	}
	return marshalPublicKey(key), nil
}

func marshalPublicKey(key Key) []byte {
	raw, _ := key.Raw()
	buf := make([]byte, marshalHeaderSize+len(raw))
	buf[0] = byte(key.Type())
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(raw)))
	copy(buf[5:], raw)
	return buf
}

func publicKeyString(key Key) string {
	return base58.Encode(marshalPublicKey(key))
}

// UnmarshalPublicKeyBytes 反序列化公钥
//
// 要求输入恰好是一个完整的序列化公钥，多余字节视为错误。
func UnmarshalPublicKeyBytes(data []byte) (PublicKey, error) {
	if len(data) < marshalHeaderSize {
		return nil, fmt.Errorf("%w: data too short", ErrUnmarshalFailed)
	}
	keyType := KeyType(data[0])
	length := binary.BigEndian.Uint32(data[1:5])
	if uint64(len(data)-marshalHeaderSize) != uint64(length) {
		return nil, fmt.Errorf("%w: data length mismatch", ErrUnmarshalFailed)
	}
	return UnmarshalPublicKey(keyType, data[marshalHeaderSize:])
}

// PublicKeyFromString 解析 Base58 文本形式的公钥
func PublicKeyFromString(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, err)
	}
	return UnmarshalPublicKeyBytes(b)
}

// MarshalPrivateKey 序列化私钥，用于写入密钥文件
func MarshalPrivateKey(key PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, ErrNilPrivateKey
	}
	raw, err := key.Raw()
	if err != nil {
		return nil, err
	}
	if key.Type() == KeyTypeEd25519 {
		raw = raw[:ed25519.SeedSize]
	}
	buf := make([]byte, marshalHeaderSize+len(raw))
	buf[0] = byte(key.Type())
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(raw)))
	copy(buf[5:], raw)
	return buf, nil
}

// UnmarshalPrivateKey 反序列化私钥
func UnmarshalPrivateKey(data []byte) (PrivateKey, error) {
	if len(data) < marshalHeaderSize {
		return nil, fmt.Errorf("%w: data too short", ErrUnmarshalFailed)
	}
	length := binary.BigEndian.Uint32(data[1:5])
	if uint64(len(data)-marshalHeaderSize) != uint64(length) {
		return nil, fmt.Errorf("%w: data length mismatch", ErrUnmarshalFailed)
	}
	raw := data[marshalHeaderSize:]
	switch KeyType(data[0]) {
	case KeyTypeEd25519:
		return Ed25519KeyFromSeed(raw)
	case KeyTypeSecp256k1:
		return Secp256k1KeyFromBytes(raw)
	default:
		return nil, ErrBadKeyType
	}
}
