// Package config 提供节点的 JSON 配置文件模型
//
// 每个子配置在独立文件中定义，提供 Default* 构造函数与 Validate。
// 组件配置的转换在根包 p2pnet.WithConfig 中完成，本包不依赖内部实现。
//
// 使用示例：
//
//	cfg, err := config.LoadFile("node.json")
//	if err != nil {
//	    return err
//	}
//	node, in, err := p2pnet.Init(ctx, netCfg, p2pnet.WithConfig(cfg))
package config

import "fmt"

// Config 节点完整配置
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// ListenAddrs 监听地址（可读形式）
	ListenAddrs []string `json:"listen_addrs"`

	// Network 网络调优
	Network NetworkConfig `json:"network"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Security 握手配置
	Security SecurityConfig `json:"security"`

	// Metrics 指标导出
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:    DefaultIdentityConfig(),
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/4001"},
		Network:     DefaultNetworkConfig(),
		Transport:   DefaultTransportConfig(),
		Security:    DefaultSecurityConfig(),
		Metrics:     DefaultMetricsConfig(),
		Log:         DefaultLogConfig(),
	}
}

// Validate 递归验证所有子配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	checks := []struct {
		name string
		fn   func() error
	}{
		{"identity", c.Identity.Validate},
		{"network", c.Network.Validate},
		{"transport", c.Transport.Validate},
		{"security", c.Security.Validate},
		{"metrics", c.Metrics.Validate},
		{"log", c.Log.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	for _, a := range c.ListenAddrs {
		if a == "" {
			return fmt.Errorf("listen_addrs: %w", ErrEmptyAddress)
		}
	}
	return nil
}
