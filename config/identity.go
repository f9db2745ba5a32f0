package config

import "fmt"

// 支持的密钥类型
const (
	KeyTypeEd25519   = "Ed25519"
	KeyTypeSecp256k1 = "Secp256k1"
)

// IdentityConfig 身份配置
type IdentityConfig struct {
	// KeyType 密钥类型，可选 "Ed25519"（默认）、"Secp256k1"
	KeyType string `json:"key_type"`

	// KeyFile 私钥文件路径
	// 为空时在内存中生成临时密钥；文件不存在时生成并写入
	KeyFile string `json:"key_file"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		KeyType: KeyTypeEd25519,
		KeyFile: "",
	}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	switch c.KeyType {
	case KeyTypeEd25519, KeyTypeSecp256k1:
		return nil
	default:
		return fmt.Errorf("%w: key type %q (want Ed25519 or Secp256k1)", ErrInvalidValue, c.KeyType)
	}
}
