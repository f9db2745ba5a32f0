package memory

import (
	"sync"

	"github.com/dep2p/go-p2pnet/pkg/types"
)

// Hub 模拟数据报网络，维护地址到端点的绑定
type Hub struct {
	mu        sync.RWMutex
	endpoints map[types.Address]*Transport
}

// NewHub 创建空的 Hub
func NewHub() *Hub {
	return &Hub{endpoints: make(map[types.Address]*Transport)}
}

func (h *Hub) bind(addr types.Address, t *Transport) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.endpoints[addr]; ok {
		return ErrAddressInUse
	}
	h.endpoints[addr] = t
	return nil
}

func (h *Hub) unbind(addr types.Address, t *Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.endpoints[addr] == t {
		delete(h.endpoints, addr)
	}
}

func (h *Hub) lookup(addr types.Address) *Transport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.endpoints[addr]
}

// Bound 地址是否已被绑定
func (h *Hub) Bound(addr types.Address) bool {
	return h.lookup(addr) != nil
}

// Len 当前绑定的端点数
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}
