// Package crypto 提供节点身份密钥
//
// 支持两种签名算法：
//
//   - Ed25519（默认）
//   - Secp256k1（github.com/decred/dcrd/dcrec/secp256k1/v4，DER 编码 ECDSA 签名）
//
// 公钥可序列化（MarshalPublicKey / UnmarshalPublicKeyBytes），文本形式为
// Base58；私钥不提供任何导出格式，String/GoString 只输出脱敏信息。
//
// 节点 ID 由序列化公钥的 SHA-256 派生，见 NodeIDFromPublicKey。
package crypto
