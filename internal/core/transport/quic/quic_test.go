package quic

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	return p
}

func listen(t *testing.T, p *Provider) network.ChannelListener {
	t.Helper()
	ln, err := p.Listen(types.MustParseAddress("/ip4/127.0.0.1/udp/0/quic-v1"))
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln
}

func dialPair(t *testing.T, p *Provider, ln network.ChannelListener) (transport.DataChannel, transport.DataChannel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := p.Dial(ctx, ln.Addr())
	require.NoError(t, err)
	s, err := ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func TestProvider_CanDial(t *testing.T) {
	p := newProvider(t)
	assert.True(t, p.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/1/quic-v1")))
	assert.True(t, p.CanDial(types.MustParseAddress("/ip6/::1/udp/1/quic-v1")))
	assert.False(t, p.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/1")))
	assert.False(t, p.CanDial(types.MustParseAddress("/dns4/example.com/udp/1/quic-v1")))
	assert.False(t, p.CanDial(types.MustParseAddress("/ip4/127.0.0.1/tcp/1")))
	assert.Equal(t, Name, p.Name())
}

func TestConn_Transfer(t *testing.T) {
	p := newProvider(t)
	ln := listen(t, p)
	c, s := dialPair(t, p, ln)

	assert.Equal(t, ln.Addr(), c.RemoteAddress())
	assert.Equal(t, c.LocalAddress(), s.RemoteAddress())

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

	// 反方向仍然可用
	_, err = s.Write([]byte("ack"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ack", string(buf[:n]))
}

func TestConn_CloseGivesRemoteEOF(t *testing.T) {
	p := newProvider(t)
	ln := listen(t, p)
	c, s := dialPair(t, p, ln)

	require.NoError(t, c.Close())
	_, err := s.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.EOF)

	_, err = c.Write([]byte("x"))
	assert.Error(t, err)
}

func TestListener_CloseAndRebind(t *testing.T) {
	p := newProvider(t)
	ln, err := p.Listen(types.MustParseAddress("/ip4/127.0.0.1/udp/0/quic-v1"))
	require.NoError(t, err)
	addr := ln.Addr()

	c, s := dialPair(t, p, ln)

	// 已接受的连接在监听器关闭后继续工作
	require.NoError(t, ln.Close())
	_, err = ln.Accept()
	assert.ErrorIs(t, err, transport.ErrClosed)

	_, err = c.Write([]byte("still"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "still", string(buf[:n]))

	require.NoError(t, s.Close())
	require.NoError(t, c.Close())

	again, err := p.Listen(addr)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestProvider_Unsupported(t *testing.T) {
	p := newProvider(t)
	_, err := p.Dial(context.Background(), types.MustParseAddress("/ip4/127.0.0.1/tcp/1"))
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
	_, err = p.Listen(types.MustParseAddress("/memory/x"))
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
}
