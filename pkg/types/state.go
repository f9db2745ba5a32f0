package types

import "bytes"

// PersistentState 握手层产生的不透明状态
//
// 由成功的握手返回（随 Connection 交付），调用方可保存后在下次
// Connect 时传回以恢复会话。网络核心从不解释其内容。
// nil 表示"没有状态"。
type PersistentState []byte

// Clone 返回独立副本
func (s PersistentState) Clone() PersistentState {
	if s == nil {
		return nil
	}
	return bytes.Clone(s)
}

// IsEmpty 是否为空状态
func (s PersistentState) IsEmpty() bool {
	return len(s) == 0
}

// Equal 逐字节比较
func (s PersistentState) Equal(other PersistentState) bool {
	return bytes.Equal(s, other)
}
