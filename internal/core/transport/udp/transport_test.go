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

// loopbackPair 两个互相连接的本地 UDP 端点
func loopbackPair(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	ctx := context.Background()

	// 先占一个端口作为 b 的地址
	holder, err := Create(ctx, InitData{
		Local:  types.MustParseAddress("/ip4/127.0.0.1/udp/0"),
		Remote: types.MustParseAddress("/ip4/127.0.0.1/udp/9"),
	})
	require.NoError(t, err)
	addrB := holder.LocalAddress()
	require.NoError(t, holder.Close())

	a, err := Create(ctx, InitData{
		Local:  types.MustParseAddress("/ip4/127.0.0.1/udp/0"),
		Remote: addrB,
	})
	require.NoError(t, err)
	b, err := Create(ctx, InitData{Local: addrB, Remote: a.LocalAddress()})
	require.NoError(t, err)

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestTransport_Loopback(t *testing.T) {
	a, b := loopbackPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := a.Send(ctx, []byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, b.MaxUnitSize())
	n, err := b.Recv(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	_, err = b.Send(ctx, []byte("world"))
	require.NoError(t, err)
	n, err = a.Recv(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
}

func TestTransport_RecvCancel(t *testing.T) {
	a, _ := loopbackPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := a.Recv(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransport_RecvAfterCancel(t *testing.T) {
	a, b := loopbackPair(t)

	// 取消与复位截止时间交错多次后，读取仍能收到数据
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i%3)*time.Millisecond)
		_, err := a.Recv(ctx, make([]byte, 64))
		cancel()
		require.Error(t, err)

		_, err = b.Send(context.Background(), []byte{byte(i)})
		require.NoError(t, err)
		rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
		buf := make([]byte, 64)
		n, err := a.Recv(rctx, buf)
		rcancel()
		require.NoError(t, err, "iteration %d", i)
		require.Equal(t, []byte{byte(i)}, buf[:n])
	}
}

func TestTransport_Closed(t *testing.T) {
	a, _ := loopbackPair(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)
	_, err = a.Recv(context.Background(), make([]byte, 8))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestTransport_UnitTooLarge(t *testing.T) {
	a, _ := loopbackPair(t)
	_, err := a.Send(context.Background(), make([]byte, a.MaxUnitSize()+1))
	assert.ErrorIs(t, err, transport.ErrUnitTooLarge)
}

func TestCreate_NotUDP(t *testing.T) {
	_, err := Create(context.Background(), InitData{
		Remote: types.MustParseAddress("/ip4/127.0.0.1/tcp/80"),
	})
	var ie *transport.InitError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, ErrNotUDPAddress)

	_, err = Create(context.Background(), InitData{
		Remote: types.MustParseAddress("/memory/x"),
	})
	assert.ErrorIs(t, err, ErrNotUDPAddress)
}
