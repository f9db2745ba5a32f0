package crypto

import (
	"github.com/minio/sha256-simd"

	"github.com/dep2p/go-p2pnet/pkg/types"
)

// NodeIDFromPublicKey 从公钥派生节点 ID
//
// 派生算法：SHA256(MarshalPublicKey(pub))
func NodeIDFromPublicKey(pub PublicKey) (types.NodeID, error) {
	if pub == nil {
		return types.EmptyNodeID, ErrNilPublicKey
	}
	return types.NodeID(sha256.Sum256(pub.Bytes())), nil
}

// NodeIDFromPrivateKey 从私钥派生节点 ID
func NodeIDFromPrivateKey(priv PrivateKey) (types.NodeID, error) {
	if priv == nil {
		return types.EmptyNodeID, ErrNilPrivateKey
	}
	return NodeIDFromPublicKey(priv.GetPublic())
}

// VerifyNodeID 验证公钥是否对应给定的节点 ID
func VerifyNodeID(pub PublicKey, id types.NodeID) bool {
	derived, err := NodeIDFromPublicKey(pub)
	return err == nil && derived == id
}
