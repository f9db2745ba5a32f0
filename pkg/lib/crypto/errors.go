package crypto

import "errors"

// 密钥相关错误
var (
	// ErrBadKeyType 不支持的密钥类型
	ErrBadKeyType = errors.New("crypto: invalid or unsupported key type")

	// ErrNilPrivateKey 私钥为空
	ErrNilPrivateKey = errors.New("crypto: nil private key")

	// ErrNilPublicKey 公钥为空
	ErrNilPublicKey = errors.New("crypto: nil public key")

	// ErrInvalidPublicKey 公钥无效
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidPrivateKey 私钥无效
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrPrivateKeyExport 私钥不可导出
	ErrPrivateKeyExport = errors.New("crypto: private keys cannot be serialized")
)

// 序列化相关错误
var (
	// ErrUnmarshalFailed 反序列化失败
	ErrUnmarshalFailed = errors.New("crypto: unmarshal failed")
)
