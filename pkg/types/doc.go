// Package types 定义 p2pnet 的公共值类型
//
// 这是最底层的包，仅依赖 pkg/lib/multiaddr。所有类型都是纯值类型，
// 可比较、可作为 map 键，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go      - NodeID 节点标识
//   - address.go  - Address 网络地址（文本 / 二进制双向编码）
//   - enums.go    - Direction 连接方向
//   - state.go    - PersistentState 握手状态
//   - errors.go   - 公共错误定义
package types
