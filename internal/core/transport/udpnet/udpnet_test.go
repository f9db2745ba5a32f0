package udpnet

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/internal/core/transport/udp"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var loopback = types.MustParseAddress("/ip4/127.0.0.1/udp/0")

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Reliable.Byzantine.RetryTimeout = 20 * time.Millisecond
	cfg.Reliable.Byzantine.MaxRetryTimeout = 100 * time.Millisecond
	cfg.Reliable.Byzantine.MaxRetries = 20
	return cfg
}

func listen(t *testing.T, p *Provider) *Listener {
	t.Helper()
	ln, err := p.Listen(loopback)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.(*Listener)
}

// connect 拨号并写入首个字节，使监听侧生成入站链路
func connect(t *testing.T, p *Provider, ln *Listener) (transport.DataChannel, transport.DataChannel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := p.Dial(ctx, ln.Addr())
	require.NoError(t, err)
	_, err = c.Write([]byte{'!'})
	require.NoError(t, err)

	s, err := ln.Accept()
	require.NoError(t, err)
	buf := make([]byte, 1)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	require.Equal(t, byte('!'), buf[0])

	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func TestProvider_CanDial(t *testing.T) {
	p := New(DefaultConfig())
	assert.True(t, p.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/4001")))
	assert.True(t, p.CanDial(types.MustParseAddress("/ip6/::1/udp/4001")))
	assert.False(t, p.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/4001/quic-v1")))
	assert.False(t, p.CanDial(types.MustParseAddress("/ip4/127.0.0.1/tcp/4001")))
	assert.False(t, p.CanDial(types.MustParseAddress("/memory/a")))
	assert.Equal(t, Name, p.Name())
}

func TestProvider_DialAccept(t *testing.T) {
	p := New(fastConfig())
	ln := listen(t, p)
	assert.NotEqual(t, "0", portOf(t, ln.Addr()))

	c, s := connect(t, p, ln)
	assert.Equal(t, ln.Addr(), c.RemoteAddress())
	assert.Equal(t, ln.Addr(), s.LocalAddress())
	assert.Equal(t, c.LocalAddress(), s.RemoteAddress())

	_, err := c.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, c.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// 反方向
	_, err = s.Write([]byte("world"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	assert.Equal(t, 2, p.Live())
	assert.Equal(t, uint64(1), ln.MuxStats().Accepted)
}

func TestProvider_LargeTransfer(t *testing.T) {
	p := New(fastConfig())
	ln := listen(t, p)
	c, s := connect(t, p, ln)

	data := make([]byte, 256*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Write(data)
		if err == nil {
			err = c.CloseWrite()
		}
		errCh <- err
	}()

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.True(t, bytes.Equal(data, got))
	assert.Positive(t, p.RetryStats().Acked)
}

func TestProvider_ManyPeersOneSocket(t *testing.T) {
	p := New(fastConfig())
	ln := listen(t, p)

	const peers = 4
	clients := make([]transport.DataChannel, peers)
	servers := make(map[string]transport.DataChannel)
	for i := range clients {
		c, s := connect(t, p, ln)
		clients[i] = c
		servers[s.RemoteAddress().String()] = s
	}
	require.Len(t, servers, peers)

	// 每个入站链路只收到自己对端的数据
	for i, c := range clients {
		_, err := c.Write([]byte{byte(i)})
		require.NoError(t, err)
	}
	for i, c := range clients {
		s := servers[c.LocalAddress().String()]
		require.NotNil(t, s)
		buf := make([]byte, 1)
		_, err := io.ReadFull(s, buf)
		require.NoError(t, err)
		assert.Equal(t, byte(i), buf[0])
	}
}

func TestProvider_NoListener(t *testing.T) {
	cfg := fastConfig()
	cfg.Reliable.Byzantine.MaxRetries = 2
	p := New(cfg)

	// 占用再释放一个端口，保证无人监听
	ln := listen(t, p)
	addr := ln.Addr()
	require.NoError(t, ln.Close())

	c, err := p.Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write([]byte("anyone?"))
	assert.ErrorIs(t, err, transport.ErrRetryExhausted)
}

func TestProvider_PeerCloseEndsRead(t *testing.T) {
	p := New(fastConfig())
	ln := listen(t, p)
	c, s := connect(t, p, ln)

	require.NoError(t, c.Close())
	_, err := io.ReadAll(s)
	require.NoError(t, err)

	// 对端已关闭整条链路，反方向写入以明确错误结束
	_, err = s.Write([]byte("late"))
	assert.ErrorIs(t, err, transport.ErrPeerClosed)
}

func TestListener_CloseUnblocksAccept(t *testing.T) {
	p := New(DefaultConfig())
	ln := listen(t, p)

	errCh := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, ln.Close())
	assert.ErrorIs(t, <-errCh, transport.ErrClosed)
}

func TestProvider_Close(t *testing.T) {
	p := New(fastConfig())
	ln := listen(t, p)
	c, _ := connect(t, p, ln)

	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Live())

	_, err := c.Write([]byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)

	_, err = p.Listen(loopback)
	assert.ErrorIs(t, err, ErrProviderClosed)
	_, err = p.Dial(context.Background(), ln.Addr())
	assert.ErrorIs(t, err, ErrProviderClosed)
}

func TestProvider_Unsupported(t *testing.T) {
	p := New(DefaultConfig())
	_, err := p.Dial(context.Background(), types.MustParseAddress("/memory/x"))
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
	_, err = p.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0"))
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, udp.DefaultMTU, cfg.MTU)
	assert.Equal(t, udp.DefaultBacklog, cfg.Backlog)
}

func portOf(t *testing.T, a types.Address) string {
	t.Helper()
	v, err := a.ValueForProtocol(multiaddr.P_UDP)
	require.NoError(t, err)
	return v
}
