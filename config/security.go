package config

import "fmt"

// SecurityConfig 握手配置
type SecurityConfig struct {
	// ResumeCacheSize 响应方保存恢复状态的对端数量
	ResumeCacheSize int `json:"resume_cache_size"`
}

// DefaultSecurityConfig 返回默认握手配置
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{ResumeCacheSize: 1024}
}

// Validate 验证握手配置
func (c SecurityConfig) Validate() error {
	if c.ResumeCacheSize <= 0 {
		return fmt.Errorf("%w: resume_cache_size must be positive", ErrInvalidValue)
	}
	return nil
}
