package memory

import "errors"

var (
	// ErrNilHub 未提供 Hub
	ErrNilHub = errors.New("memory: nil hub")

	// ErrAddressInUse 地址已被绑定
	ErrAddressInUse = errors.New("memory: address already in use")

	// ErrInvalidFaults 故障概率不在 [0, 1) 区间
	ErrInvalidFaults = errors.New("memory: fault probabilities must be in [0, 1)")
)
