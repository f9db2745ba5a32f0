// Package security 组装握手器
//
// 网络核心只依赖 pkg/interfaces/security 的 HandshakerFactory；
// 本包的 Fx 模块以 Noise XX 实现提供该工厂。
//
// 子包：
//   - noise: XX 握手、签名的静态密钥、会话恢复
package security
