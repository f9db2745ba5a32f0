package tcp

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/lib/multiaddr"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

func listen(t *testing.T, p *Provider) *Listener {
	t.Helper()
	ln, err := p.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.(*Listener)
}

func dialPair(t *testing.T) (transport.DataChannel, transport.DataChannel) {
	t.Helper()
	p := New(DefaultConfig())
	ln := listen(t, p)

	accepted := make(chan transport.DataChannel, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := p.Dial(ctx, ln.Addr())
	require.NoError(t, err)
	s, ok := <-accepted
	require.True(t, ok)
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func TestProvider_CanDial(t *testing.T) {
	p := New(DefaultConfig())
	for s, want := range map[string]bool{
		"/ip4/127.0.0.1/tcp/4001":         true,
		"/ip6/::1/tcp/4001":               true,
		"/dns4/example.com/tcp/80":        true,
		"/ip4/127.0.0.1/tcp/80/ws":        false,
		"/ip4/127.0.0.1/udp/4001":         false,
		"/ip4/127.0.0.1/udp/4001/quic-v1": false,
		"/memory/a":                       false,
	} {
		assert.Equal(t, want, p.CanDial(types.MustParseAddress(s)), s)
	}
	assert.Equal(t, "tcp", p.Name())
}

func TestListener_ResolvesPort(t *testing.T) {
	ln := listen(t, New(DefaultConfig()))
	port, err := ln.Addr().ValueForProtocol(multiaddr.P_TCP)
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)
}

func TestConn_Addresses(t *testing.T) {
	c, s := dialPair(t)
	assert.Equal(t, c.LocalAddress(), s.RemoteAddress())
	assert.Equal(t, c.RemoteAddress(), s.LocalAddress())
}

func TestConn_HalfClose(t *testing.T) {
	c, s := dialPair(t)

	_, err := c.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, c.CloseWrite())

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// 反方向仍然可用
	_, err = s.Write([]byte("world"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
}

func TestListener_CloseUnblocksAccept(t *testing.T) {
	ln := listen(t, New(DefaultConfig()))
	errCh := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ln.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Accept 未返回")
	}
}

func TestListener_Rebind(t *testing.T) {
	p := New(DefaultConfig())
	ln := listen(t, p)
	addr := ln.Addr()

	_, err := p.Listen(addr)
	assert.Error(t, err)

	require.NoError(t, ln.Close())
	again, err := p.Listen(addr)
	require.NoError(t, err)
	again.Close()
}

func TestProvider_Unsupported(t *testing.T) {
	p := New(DefaultConfig())
	_, err := p.Dial(context.Background(), types.MustParseAddress("/memory/x"))
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
	_, err = p.Listen(types.MustParseAddress("/ip4/127.0.0.1/udp/1"))
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
}

func TestProvider_DialCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(DefaultConfig()).Dial(ctx, types.MustParseAddress("/ip4/127.0.0.1/tcp/1"))
	assert.Error(t, err)
}
