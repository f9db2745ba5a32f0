// Package lib 包含基础设施工具库
//
// 本目录包含与网络组件无关的通用工具库：
//
//   - crypto: 密钥、签名与 NodeID 派生
//   - multiaddr: 多地址格式解析
//   - log: 日志封装
//
// # 与 pkg/ 其他目录的关系
//
//   - interfaces/: 组件公共接口
//   - types/: 公共类型定义
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-p2pnet/pkg/lib/crypto"
//	    "github.com/dep2p/go-p2pnet/pkg/lib/log"
//	    "github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
//	)
package lib
