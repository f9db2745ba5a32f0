package network

import (
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// Deps 网络依赖
type Deps struct {
	// Codec 地址校验，nil 使用 addrcodec.Default()
	Codec netif.AddressCodec

	// Providers 通道提供者，按顺序选择第一个 CanDial 的
	Providers []netif.ChannelProvider

	// Handshaker 以本地私钥构造握手器
	Handshaker security.HandshakerFactory
}

// Observer 网络事件钩子，用于指标
type Observer interface {
	HandshakeStarted(dir types.Direction)
	HandshakeCompleted(dir types.Direction, err error)
	ListenerOpened(addr types.Address)
	ListenerClosed(addr types.Address)
}

type nopObserver struct{}

func (nopObserver) HandshakeStarted(types.Direction)          {}
func (nopObserver) HandshakeCompleted(types.Direction, error) {}
func (nopObserver) ListenerOpened(types.Address)              {}
func (nopObserver) ListenerClosed(types.Address)              {}

type options struct {
	cfg      Config
	observer Observer
}

// Option Init 选项
type Option func(*options)

// WithConfig 设置调优参数
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithObserver 设置事件钩子
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
