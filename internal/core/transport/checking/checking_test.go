package checking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

func memPair(t *testing.T, faults memory.Faults) (*memory.Transport, *memory.Transport) {
	t.Helper()
	hub := memory.NewHub()
	addrA := types.MustParseAddress("/memory/a")
	addrB := types.MustParseAddress("/memory/b")
	a, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrA, Remote: addrB, Faults: faults})
	require.NoError(t, err)
	b, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrB, Remote: addrA})
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestChecking_RoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmBLAKE3, AlgorithmMurmur3} {
		t.Run(string(alg), func(t *testing.T) {
			la, lb := memPair(t, memory.Faults{})
			a, err := New(la, Config{Algorithm: alg})
			require.NoError(t, err)
			b, err := New(lb, Config{Algorithm: alg})
			require.NoError(t, err)

			assert.Equal(t, la.MaxUnitSize()-DigestSize, a.MaxUnitSize())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err = a.Send(ctx, []byte("payload"))
			require.NoError(t, err)

			buf := make([]byte, b.MaxUnitSize())
			n, err := b.Recv(ctx, buf)
			require.NoError(t, err)
			assert.Equal(t, "payload", string(buf[:n]))
			assert.Equal(t, uint64(1), b.IntegrityStats().Verified)
		})
	}
}

func TestChecking_DetectsCorruption(t *testing.T) {
	la, lb := memPair(t, memory.Faults{})
	b, err := New(lb, DefaultConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, err := Seal(DefaultConfig(), []byte("important"))
	require.NoError(t, err)
	frame[2] ^= 0x01
	_, err = la.Send(ctx, frame)
	require.NoError(t, err)

	_, err = b.Recv(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, transport.ErrCorrupted)

	// 过短的单元同样视为损坏
	_, err = la.Send(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	_, err = b.Recv(ctx, make([]byte, 64))
	assert.ErrorIs(t, err, transport.ErrCorrupted)

	assert.Equal(t, uint64(2), b.IntegrityStats().Corrupted)
	assert.Zero(t, b.IntegrityStats().Verified)
}

func TestChecking_NeverDeliversCorrupted(t *testing.T) {
	la, lb := memPair(t, memory.Faults{Corrupt: 0.5, Seed: 3})
	a, err := New(la, DefaultConfig())
	require.NoError(t, err)
	b, err := New(lb, DefaultConfig())
	require.NoError(t, err)

	ctx := context.Background()
	const total = 200
	msg := []byte("the quick brown fox")
	for i := 0; i < total; i++ {
		_, err := a.Send(ctx, msg)
		require.NoError(t, err)
	}

	delivered := 0
	buf := make([]byte, b.MaxUnitSize())
	for i := 0; i < total; i++ {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		n, err := b.Recv(rctx, buf)
		cancel()
		if errors.Is(err, transport.ErrCorrupted) {
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, msg, buf[:n])
		delivered++
	}

	st := b.IntegrityStats()
	assert.Equal(t, uint64(total), st.Verified+st.Corrupted)
	assert.Equal(t, uint64(delivered), st.Verified)
	assert.NotZero(t, st.Corrupted)
}

func TestNew_Invalid(t *testing.T) {
	la, _ := memPair(t, memory.Faults{})
	_, err := New(la, Config{Algorithm: "crc"})
	var ie *transport.InitError
	assert.ErrorAs(t, err, &ie)

	_, err = New(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestChecking_UnitTooLarge(t *testing.T) {
	la, _ := memPair(t, memory.Faults{})
	a, err := New(la, DefaultConfig())
	require.NoError(t, err)
	_, err = a.Send(context.Background(), make([]byte, a.MaxUnitSize()+1))
	assert.ErrorIs(t, err, transport.ErrUnitTooLarge)
}
