// Package network 实现 network.Network 契约
//
// 结构：
//
//	Init        校验密钥、原子地绑定全部监听地址
//	Connect     非阻塞出站请求，同一 (id, 地址) 在途时去重
//	Listen      逐个绑定追加地址，失败互不影响
//	Incoming    单消费者结果流，按完成顺序交付入站与出站结果
//
// 所有后台 goroutine（accept 循环、拨号、握手）属于同一个作用域
// （context + WaitGroup）。Close 依次：取消作用域、关闭监听器、
// 等待全部 goroutine 退出、关闭已完成但未被取走的连接，最后结束
// incoming 流。Close 返回后所有监听地址都可重新绑定。
//
// 握手数量受信号量限制，入站握手前经过速率限制器。握手失败以
// *network.ConnectionError 出现在 incoming 流上，不影响其他连接。
package network
