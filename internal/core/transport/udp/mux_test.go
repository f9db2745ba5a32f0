package udp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

func listenMux(t *testing.T, data ListenData) *Mux {
	t.Helper()
	if data.Local.IsZero() {
		data.Local = types.MustParseAddress("/ip4/127.0.0.1/udp/0")
	}
	m, err := Listen(context.Background(), data)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func dialMux(t *testing.T, m *Mux) *Transport {
	t.Helper()
	c, err := Create(context.Background(), InitData{Remote: m.LocalAddress()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func recvWithin(t *testing.T, tr transport.LossyTransport) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	buf := make([]byte, tr.MaxUnitSize())
	n, err := tr.Recv(ctx, buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestMux_DemuxBySource(t *testing.T) {
	m := listenMux(t, ListenData{})
	c1 := dialMux(t, m)
	c2 := dialMux(t, m)

	ctx := context.Background()
	_, err := c1.Send(ctx, []byte("one"))
	require.NoError(t, err)
	e1, err := m.Accept()
	require.NoError(t, err)
	assert.Equal(t, c1.LocalAddress(), e1.RemoteAddress())
	assert.Equal(t, m.LocalAddress(), e1.LocalAddress())
	assert.Equal(t, "one", recvWithin(t, e1))

	_, err = c2.Send(ctx, []byte("two"))
	require.NoError(t, err)
	e2, err := m.Accept()
	require.NoError(t, err)
	assert.Equal(t, c2.LocalAddress(), e2.RemoteAddress())
	assert.Equal(t, "two", recvWithin(t, e2))

	// 已知来源不再生成端点
	_, err = c1.Send(ctx, []byte("again"))
	require.NoError(t, err)
	assert.Equal(t, "again", recvWithin(t, e1))
	assert.Equal(t, uint64(2), m.Stats().Accepted)

	// 回程经共享套接字到达对应拨号端
	_, err = e2.Send(ctx, []byte("back"))
	require.NoError(t, err)
	assert.Equal(t, "back", recvWithin(t, c2))
}

func TestMux_LingerDropsLateDatagrams(t *testing.T) {
	m := listenMux(t, ListenData{Linger: time.Minute})
	c := dialMux(t, m)

	ctx := context.Background()
	_, err := c.Send(ctx, []byte("hi"))
	require.NoError(t, err)
	ep, err := m.Accept()
	require.NoError(t, err)
	require.NoError(t, ep.Close())

	_, err = c.Send(ctx, []byte("late"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return m.Stats().Lingered == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), m.Stats().Accepted)

	_, err = ep.Send(ctx, []byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestMux_BacklogFull(t *testing.T) {
	m := listenMux(t, ListenData{Backlog: 1})
	c1 := dialMux(t, m)
	c2 := dialMux(t, m)

	ctx := context.Background()
	_, err := c1.Send(ctx, []byte("a"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Stats().Accepted == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = c2.Send(ctx, []byte("b"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Stats().Refused == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestMux_CloseUnblocksAccept(t *testing.T) {
	m := listenMux(t, ListenData{})

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Accept()
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Close())
	assert.ErrorIs(t, <-errCh, transport.ErrClosed)
}

func TestMux_CloseEndsEndpoints(t *testing.T) {
	m := listenMux(t, ListenData{})
	c := dialMux(t, m)

	_, err := c.Send(context.Background(), []byte("hi"))
	require.NoError(t, err)
	ep, err := m.Accept()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		// 首个数据报已在队列中
		if _, err := ep.Recv(context.Background(), buf); err != nil {
			errCh <- err
			return
		}
		_, err := ep.Recv(context.Background(), buf)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Close())
	assert.ErrorIs(t, <-errCh, transport.ErrClosed)
}

func TestListen_NotUDP(t *testing.T) {
	_, err := Listen(context.Background(), ListenData{Local: types.MustParseAddress("/ip4/127.0.0.1/tcp/0")})
	var ie *transport.InitError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, ErrNotUDPAddress)
}
