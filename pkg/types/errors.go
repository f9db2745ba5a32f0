package types

import "errors"

var (
	// ErrInvalidNodeID 无效的节点 ID
	ErrInvalidNodeID = errors.New("invalid node ID: must be 32 bytes Base58")

	// ErrEmptyAddress 空地址
	ErrEmptyAddress = errors.New("empty address")
)
