package p2pnet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/dep2p/go-p2pnet/config"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
)

// LoadIdentity 按配置加载或生成身份密钥
//
// KeyFile 为空时生成临时密钥；文件不存在时生成并以 Base58 文本写入（0600）。
func LoadIdentity(c config.IdentityConfig) (crypto.PrivateKey, crypto.PublicKey, error) {
	kt, err := crypto.ParseKeyType(c.KeyType)
	if err != nil {
		return nil, nil, err
	}
	if c.KeyFile == "" {
		return crypto.GenerateKeyPair(kt)
	}

	data, err := os.ReadFile(c.KeyFile)
	switch {
	case err == nil:
		raw, err := base58.Decode(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, nil, fmt.Errorf("decode key file %s: %w", c.KeyFile, err)
		}
		priv, err := crypto.UnmarshalPrivateKey(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("load key file %s: %w", c.KeyFile, err)
		}
		if priv.Type() != kt {
			logger.Warn("密钥文件类型与配置不一致，以文件为准", "file", c.KeyFile, "file_type", priv.Type(), "config_type", kt)
		}
		return priv, priv.GetPublic(), nil

	case errors.Is(err, os.ErrNotExist):
		priv, pub, err := crypto.GenerateKeyPair(kt)
		if err != nil {
			return nil, nil, err
		}
		raw, err := crypto.MarshalPrivateKey(priv)
		if err != nil {
			return nil, nil, err
		}
		if err := os.WriteFile(c.KeyFile, []byte(base58.Encode(raw)+"\n"), 0o600); err != nil {
			return nil, nil, fmt.Errorf("write key file: %w", err)
		}
		logger.Info("已生成新的身份密钥", "file", c.KeyFile, "type", kt)
		return priv, pub, nil

	default:
		return nil, nil, fmt.Errorf("read key file: %w", err)
	}
}
