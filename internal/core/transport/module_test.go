package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-p2pnet/internal/core/transport/memnet"
	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	"github.com/dep2p/go-p2pnet/internal/core/transport/udpnet"
	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

func names(ps []netif.ChannelProvider) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name())
	}
	return out
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	assert.True(t, cfg.EnableTCP)
	assert.True(t, cfg.EnableQUIC)
	assert.False(t, cfg.EnableWebSocket)
	assert.False(t, cfg.EnableMemory)
	assert.False(t, cfg.EnableUDP)
}

func TestNewManager_Default(t *testing.T) {
	m, err := NewManager(NewConfig(), nil)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"tcp", "quic"}, names(m.Providers()))
	assert.Empty(t, m.StatsSources())
}

func TestNewManager_All(t *testing.T) {
	cfg := NewConfig()
	cfg.EnableWebSocket = true
	cfg.EnableUDP = true
	cfg.EnableMemory = true

	hub := memory.NewHub()
	m, err := NewManager(cfg, hub)
	require.NoError(t, err)

	assert.Equal(t, []string{"tcp", "websocket", "quic", "udp", "memnet"}, names(m.Providers()))
	require.Contains(t, m.StatsSources(), memnet.Name)
	require.Contains(t, m.StatsSources(), udpnet.Name)

	mem := m.Providers()[4].(*memnet.Provider)
	assert.Same(t, hub, mem.Hub())

	// 每个地址只由一个提供者处理
	cases := map[string]string{
		"/ip4/127.0.0.1/tcp/1":         "tcp",
		"/ip4/127.0.0.1/tcp/1/ws":      "websocket",
		"/ip4/127.0.0.1/udp/1/quic-v1": "quic",
		"/ip4/127.0.0.1/udp/1":         "udp",
		"/memory/a":                    "memnet",
	}
	for s, want := range cases {
		addr := types.MustParseAddress(s)
		var got []string
		for _, p := range m.Providers() {
			if p.CanDial(addr) {
				got = append(got, p.Name())
			}
		}
		assert.Equal(t, []string{want}, got, s)
	}

	require.NoError(t, m.Close())
	_, err = mem.Listen(types.MustParseAddress("/memory/after"))
	assert.ErrorIs(t, err, memnet.ErrProviderClosed)
}

func TestNewManager_NoneEnabled(t *testing.T) {
	_, err := NewManager(Config{}, nil)
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestModule(t *testing.T) {
	cfg := NewConfig()
	cfg.EnableQUIC = false
	cfg.EnableMemory = true

	var got []netif.ChannelProvider
	app := fxtest.New(t,
		fx.Supply(&cfg),
		Module(),
		fx.Invoke(fx.Annotate(func(ps []netif.ChannelProvider) {
			got = ps
		}, fx.ParamTags(`group:"providers"`))),
	)
	app.RequireStart()
	assert.ElementsMatch(t, []string{"tcp", "memnet"}, names(got))
	app.RequireStop()
}
