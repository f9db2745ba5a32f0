// Package memnet 实现进程内模拟网络的通道提供者
//
// 每次拨号在 memory.Hub 上创建一对数据报端点（地址由 uuid 生成），
// 两端各自包上完整的可靠传输栈（校验、确认、排序）并以 reliable.Stream
// 的形式交给调用方。可通过 Config.Faults 为底层链路注入丢失、重复、
// 损坏与乱序，用于在测试中验证可靠传输的恢复能力。
//
// 地址形式为 /memory/<name>。监听地址只在所属 Provider 内可见。
package memnet
