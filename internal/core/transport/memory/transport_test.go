package memory

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

func pair(t *testing.T, hub *Hub, fa, fb Faults) (*Transport, *Transport) {
	t.Helper()
	ctx := context.Background()
	addrA := types.MustParseAddress("/memory/a")
	addrB := types.MustParseAddress("/memory/b")

	a, err := Create(ctx, InitData{Hub: hub, Local: addrA, Remote: addrB, Faults: fa})
	require.NoError(t, err)
	b, err := Create(ctx, InitData{Hub: hub, Local: addrB, Remote: addrA, Faults: fb})
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func recvTimeout(t *testing.T, tr *Transport, d time.Duration) ([]byte, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	buf := make([]byte, tr.MaxUnitSize())
	n, err := tr.Recv(ctx, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func TestTransport_SendRecv(t *testing.T) {
	a, b := pair(t, NewHub(), Faults{}, Faults{})
	ctx := context.Background()

	n, err := a.Send(ctx, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := recvTimeout(t, b, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))

	// 空单元也是合法单元
	_, err = b.Send(ctx, nil)
	require.NoError(t, err)
	got, err = recvTimeout(t, a, time.Second)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreate_AddressInUse(t *testing.T) {
	hub := NewHub()
	addr := types.MustParseAddress("/memory/dup")
	a, err := Create(context.Background(), InitData{Hub: hub, Local: addr})
	require.NoError(t, err)

	_, err = Create(context.Background(), InitData{Hub: hub, Local: addr})
	var ie *transport.InitError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, ErrAddressInUse)

	// 关闭后立即可重新绑定
	require.NoError(t, a.Close())
	assert.False(t, hub.Bound(addr))
	b, err := Create(context.Background(), InitData{Hub: hub, Local: addr})
	require.NoError(t, err)
	b.Close()
}

func TestCreate_InvalidInput(t *testing.T) {
	_, err := Create(context.Background(), InitData{})
	assert.ErrorIs(t, err, ErrNilHub)

	_, err = Create(context.Background(), InitData{Hub: NewHub(), Faults: Faults{Drop: 1}})
	assert.ErrorIs(t, err, ErrInvalidFaults)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Create(ctx, InitData{Hub: NewHub()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransport_UnitTooLarge(t *testing.T) {
	a, _ := pair(t, NewHub(), Faults{}, Faults{})
	_, err := a.Send(context.Background(), make([]byte, a.MaxUnitSize()+1))
	assert.ErrorIs(t, err, transport.ErrUnitTooLarge)
}

func TestTransport_ShortBuffer(t *testing.T) {
	a, b := pair(t, NewHub(), Faults{}, Faults{})
	_, err := a.Send(context.Background(), []byte("0123456789"))
	require.NoError(t, err)

	_, err = b.Recv(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestTransport_NoPeerIsLoss(t *testing.T) {
	hub := NewHub()
	a, err := Create(context.Background(), InitData{
		Hub:    hub,
		Local:  types.MustParseAddress("/memory/lonely"),
		Remote: types.MustParseAddress("/memory/nobody"),
	})
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Send(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), a.Stats().Overflow)
}

func TestTransport_RecvCancel(t *testing.T) {
	_, b := pair(t, NewHub(), Faults{}, Faults{})

	_, err := recvTimeout(t, b, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_CloseUnblocksRecv(t *testing.T) {
	_, b := pair(t, NewHub(), Faults{}, Faults{})

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Recv(context.Background(), make([]byte, 16))
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv 未被 Close 唤醒")
	}

	_, err := b.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.NoError(t, b.Close())
}

func TestTransport_Faults(t *testing.T) {
	const total = 1000
	a, b := pair(t, NewHub(), Faults{Drop: 0.3, Duplicate: 0.2, Corrupt: 0.1, Reorder: 0.1, Seed: 42}, Faults{})

	ctx := context.Background()
	for i := 0; i < total; i++ {
		_, err := a.Send(ctx, []byte{byte(i), byte(i >> 8), 0xAA})
		require.NoError(t, err)
		// 及时取走，避免队列溢出
		for {
			_, err := recvTimeout(t, b, time.Millisecond)
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			require.NoError(t, err)
		}
	}

	st := a.Stats()
	assert.Equal(t, uint64(total), st.Sent)
	assert.InDelta(t, 0.3*total, float64(st.Dropped), 0.06*total)
	assert.NotZero(t, st.Duplicated)
	assert.NotZero(t, st.Corrupted)
	assert.NotZero(t, st.Reordered)
}

func TestTransport_FaultsDeterministic(t *testing.T) {
	run := func() Stats {
		a, b := pair(t, NewHub(), Faults{Drop: 0.5, Seed: 7}, Faults{})
		for i := 0; i < 200; i++ {
			_, _ = a.Send(context.Background(), []byte{1})
		}
		a.Close()
		b.Close()
		return a.Stats()
	}
	assert.Equal(t, run().Dropped, run().Dropped)
}
