package security

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pnet/internal/core/security/noise"
	securityif "github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
)

var logger = log.Logger("core/security")

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config Noise 配置（可选）
	Config *noise.Config `optional:"true"`
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Factory 以本地私钥构造握手器
	Factory securityif.HandshakerFactory
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("security",
		fx.Provide(ProvideHandshaker),
	)
}

// ProvideHandshaker 提供 Noise 握手器工厂
func ProvideHandshaker(in ModuleInput) ModuleOutput {
	cfg := noise.DefaultConfig()
	if in.Config != nil {
		cfg = *in.Config
	}
	logger.Debug("握手器已配置", "protocol", "noise", "resumeCache", cfg.ResumeCacheSize)
	return ModuleOutput{Factory: noise.Factory(cfg)}
}
