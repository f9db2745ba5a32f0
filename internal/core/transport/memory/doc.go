// Package memory 实现进程内模拟数据报网络
//
// Hub 模拟一张数据报网络：每个 Transport 绑定 Hub 上的一个地址，
// 并向一个固定的对端地址发送单元。行为与 UDP 套接字一致：
//
//   - 对端不存在或接收队列已满时单元静默丢失
//   - 不保证顺序、送达与唯一性
//
// Faults 可按概率注入丢包、重复、损坏和乱序，用于验证上层可靠传输。
// 随机源可用 Seed 固定，使测试可复现。
//
//	hub := memory.NewHub()
//	a, _ := memory.Create(ctx, memory.InitData{Hub: hub, Local: addrA, Remote: addrB})
//	b, _ := memory.Create(ctx, memory.InitData{Hub: hub, Local: addrB, Remote: addrA})
package memory
