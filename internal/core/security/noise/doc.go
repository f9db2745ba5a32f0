// Package noise 实现基于 Noise 协议的握手器
//
// # 协议
//
// 使用 Noise_XX_25519_ChaChaPoly_SHA256 模式：
//
//	-> e                              (发起者发送临时公钥)
//	<- e, ee, s, es, payload          (响应者发送临时公钥、静态公钥、payload)
//	-> s, se, payload                 (发起者发送静态公钥、payload)
//	<- resume                         (响应者确认恢复纪元，加密)
//
// payload 以 protobuf 线格式编码：
//
//	1: identity_key   序列化的身份公钥
//	2: identity_sig   Sign("p2pnet-noise-static-key:" || noise_static_pubkey)
//	3: resume_epoch   发起者持有的恢复纪元（仅 msg3，0 表示无）
//	4: resume_claim   SHA256("p2pnet-noise-resume-claim:" || secret) 前 8 字节（仅 msg3）
//
// 静态 DH 密钥每个握手器生成一次，通过签名绑定到身份密钥，
// 因此身份密钥可以是 Ed25519 或 Secp256k1。
//
// # 会话恢复
//
// 恢复状态 {epoch, secret} 由调用方保存（types.PersistentState）。
// 每次握手后双方派生：
//
//	secret' = HKDF-SHA256(ikm = channel_binding, salt = secret, info = "p2pnet resume")
//
// 双方持有同一纪元且声明校验值一致时纪元加一并沿用上一秘密作为盐，
// 否则从纪元 1 重新开始，因此任一方的状态损坏都不会阻塞后续连接。
// 响应方在 LRU 缓存中按对端节点 ID 保存自己的状态。
//
// # 传输帧
//
// 每帧 2 字节大端长度前缀，后接密文，密文不超过 65535 字节。
// 写方向关闭时发送一个加密的空明文帧（16 字节标签），对端解密成功后读到 io.EOF。
// 明文的零长度帧或底层在结束标记之前结束都报告为错误，防止截断。
package noise
