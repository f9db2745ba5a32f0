package config

import "fmt"

// MetricsConfig 指标导出配置
type MetricsConfig struct {
	// Enable 是否收集 Prometheus 指标
	Enable bool `json:"enable"`

	// ListenAddr /metrics HTTP 端点地址（host:port），为空时不启动
	ListenAddr string `json:"listen_addr"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enable: false}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.ListenAddr != "" && !c.Enable {
		return fmt.Errorf("%w: listen_addr requires enable", ErrInvalidValue)
	}
	return nil
}
